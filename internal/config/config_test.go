package config

import "testing"

func TestParseTiers(t *testing.T) {
	tiers := parseTiers("GOLD:1000,BRONZE:0,SILVER:500")
	if len(tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(tiers))
	}
	want := []string{"BRONZE", "SILVER", "GOLD"}
	for i, name := range want {
		if tiers[i].Name != name {
			t.Errorf("tier %d: got %s, want %s", i, tiers[i].Name, name)
		}
	}
}

func TestParseTiersSkipsMalformed(t *testing.T) {
	tiers := parseTiers("BRONZE:0,broken,SILVER:abc,GOLD:1000")
	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(tiers))
	}
	if tiers[0].Name != "BRONZE" || tiers[1].Name != "GOLD" {
		t.Fatalf("unexpected tiers: %+v", tiers)
	}
}

func TestParseTiersFallback(t *testing.T) {
	tiers := parseTiers("")
	if len(tiers) != 4 {
		t.Fatalf("expected fallback ladder of 4, got %d", len(tiers))
	}
	if tiers[0].Name != "BRONZE" || tiers[3].Name != "PLATINUM" {
		t.Fatalf("unexpected fallback: %+v", tiers)
	}
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	if rules.InitialPoints != 100 {
		t.Errorf("initial points = %d, want 100", rules.InitialPoints)
	}
	if rules.RewardRate != 0.2 {
		t.Errorf("reward rate = %v, want 0.2", rules.RewardRate)
	}
	if rules.MinWithdrawal != 100 || rules.WithdrawFee != 15 {
		t.Errorf("withdrawal rules wrong: min=%d fee=%d", rules.MinWithdrawal, rules.WithdrawFee)
	}
	if len(rules.Tiers) != 4 {
		t.Errorf("expected 4 tiers, got %d", len(rules.Tiers))
	}
}
