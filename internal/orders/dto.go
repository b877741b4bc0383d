package orders

import (
	"github.com/shoplane/shoplane-backend/pkg/db/models"
)

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
