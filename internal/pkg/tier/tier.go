// Package tier derives the member tier from the point balance. The tier is a
// pure function of balance against an ascending threshold ladder; it is
// recomputed after every balance change and stored denormalized for reads.
package tier

import "github.com/pointloop/loyalty-api/internal/config"

// For returns the name of the highest tier whose threshold the balance meets.
func For(balance int64, tiers []config.TierThreshold) string {
	if len(tiers) == 0 {
		return ""
	}
	name := tiers[0].Name
	for _, t := range tiers {
		if balance >= t.MinPoints {
			name = t.Name
		} else {
			break
		}
	}
	return name
}
