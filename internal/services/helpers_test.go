package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func newUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}
