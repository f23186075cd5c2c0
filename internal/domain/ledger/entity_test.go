package ledger_test

import (
	"testing"

	"github.com/pointloop/loyalty-api/internal/domain/ledger"
)

func TestRecordStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ledger.RecordStatus
		allowed  bool
	}{
		{ledger.RecordStatusPending, ledger.RecordStatusProcessing, true},
		{ledger.RecordStatusPending, ledger.RecordStatusCompleted, true},
		{ledger.RecordStatusPending, ledger.RecordStatusRejected, true},
		{ledger.RecordStatusProcessing, ledger.RecordStatusCompleted, true},
		{ledger.RecordStatusProcessing, ledger.RecordStatusRejected, true},
		{ledger.RecordStatusProcessing, ledger.RecordStatusPending, false},
		{ledger.RecordStatusCompleted, ledger.RecordStatusPending, false},
		{ledger.RecordStatusCompleted, ledger.RecordStatusRejected, false},
		{ledger.RecordStatusRejected, ledger.RecordStatusCompleted, false},
		{ledger.RecordStatusPending, ledger.RecordStatusPending, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestRecordStatusValid(t *testing.T) {
	for _, s := range []ledger.RecordStatus{
		ledger.RecordStatusPending,
		ledger.RecordStatusProcessing,
		ledger.RecordStatusCompleted,
		ledger.RecordStatusRejected,
	} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if ledger.RecordStatus("cancelled").Valid() {
		t.Error("expected cancelled to be invalid")
	}
}
