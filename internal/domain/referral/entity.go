package referral

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names the ledger event a reward is paid for.
type EventKind string

const (
	EventPurchase EventKind = "purchase"
	EventWithdraw EventKind = "withdraw"
)

// Transaction types written by the referral engine. Values match the ledger's
// transaction enum.
const (
	TxTypePurchaseReward = "referral_purchase_reward"
	TxTypeWithdrawReward = "referral_withdraw_reward"
)

// RelationStatus is the lifecycle status of a referral relation.
type RelationStatus string

const (
	RelationStatusActive  RelationStatus = "active"
	RelationStatusRevoked RelationStatus = "revoked"
)

// Relation binds a referee to the referrer whose code they registered with.
// There is at most one relation per referee; the first successful bind wins
// and the binding itself never pays points. Reward accumulates the points
// the relation has earned the referrer since.
type Relation struct {
	ID           uuid.UUID      `db:"id"`
	ReferralCode string         `db:"referral_code"`
	ReferrerID   string         `db:"referrer_id"`
	ReferrerName string         `db:"referrer_name"`
	RefereeID    string         `db:"referee_id"`
	RefereeName  string         `db:"referee_name"`
	Reward       int64          `db:"reward"`
	Status       RelationStatus `db:"status"`
	CreatedAt    time.Time      `db:"created_at"`
}

// RewardResult reports the outcome of a reward attempt. NoReferrer is a
// normal outcome, not an error: most members have no referrer.
type RewardResult struct {
	Paid         bool   `json:"paid"`
	Pending      bool   `json:"pending,omitempty"`
	ReferrerID   string `json:"referrer_id,omitempty"`
	ReferrerName string `json:"referrer_name,omitempty"`
	Reward       int64  `json:"reward,omitempty"`
}
