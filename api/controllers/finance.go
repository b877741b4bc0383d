package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/api/responses"
	"github.com/shoplane/shoplane-backend/api/validators"
	financesvc "github.com/shoplane/shoplane-backend/internal/finance"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/logger"
)

// AdminFinanceBalance returns the current ledger head.
func AdminFinanceBalance(svc financesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := svc.Balance(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]int{"balance_cents": balance})
	}
}

// AdminFinanceList pages through ledger entries, newest first.
func AdminFinanceList(svc financesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.List(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"transactions": newLedgerEntries(entries)})
	}
}

// AdminFinanceByOrder returns every ledger entry tied to one order.
func AdminFinanceByOrder(svc financesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.ListByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"transactions": newLedgerEntries(entries)})
	}
}

type ledgerEntryResponse struct {
	ID                int64      `json:"id"`
	Type              string     `json:"type"`
	AmountCents       int        `json:"amount_cents"`
	BalanceAfterCents int        `json:"balance_after_cents"`
	OrderID           *uuid.UUID `json:"order_id,omitempty"`
	Note              *string    `json:"note,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func newLedgerEntries(entries []models.FinanceTransaction) []ledgerEntryResponse {
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ledgerEntryResponse{
			ID:                entry.ID,
			Type:              string(entry.Type),
			AmountCents:       entry.AmountCents,
			BalanceAfterCents: entry.BalanceAfterCents,
			OrderID:           entry.OrderID,
			Note:              entry.Note,
			CreatedAt:         entry.CreatedAt,
		})
	}
	return out
}
