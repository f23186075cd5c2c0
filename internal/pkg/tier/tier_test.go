package tier_test

import (
	"testing"

	"github.com/pointloop/loyalty-api/internal/config"
	"github.com/pointloop/loyalty-api/internal/pkg/tier"
)

func TestFor(t *testing.T) {
	tiers := config.DefaultRules().Tiers

	cases := []struct {
		balance int64
		want    string
	}{
		{0, "BRONZE"},
		{499, "BRONZE"},
		{500, "SILVER"},
		{999, "SILVER"},
		{1000, "GOLD"},
		{4999, "GOLD"},
		{5000, "PLATINUM"},
		{100000, "PLATINUM"},
	}
	for _, c := range cases {
		if got := tier.For(c.balance, tiers); got != c.want {
			t.Errorf("For(%d) = %s, want %s", c.balance, got, c.want)
		}
	}
}

func TestForEmptyLadder(t *testing.T) {
	if got := tier.For(1000, nil); got != "" {
		t.Errorf("expected empty tier for empty ladder, got %q", got)
	}
}
