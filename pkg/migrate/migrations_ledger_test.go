package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLedgerMigrationSeedsBalanceHead(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_finance_ledger.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no finance ledger migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS finance_transactions",
		"balance_after_cents INTEGER NOT NULL",
		"CREATE TABLE IF NOT EXISTS finance_balances",
		"CHECK (id = 1)",
		"INSERT INTO finance_balances (id, balance_cents) VALUES (1, 0)",
		"DROP TABLE IF EXISTS finance_transactions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
