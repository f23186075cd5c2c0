package referral

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pointloop/loyalty-api/internal/config"
	"github.com/pointloop/loyalty-api/internal/domain/member"
	"github.com/pointloop/loyalty-api/internal/pkg/tier"
)

type Repository struct {
	db      *sqlx.DB
	members *member.Repository
	rules   config.Rules
}

func NewRepository(db *sqlx.DB, members *member.Repository, rules config.Rules) *Repository {
	return &Repository{db: db, members: members, rules: rules}
}

// CreateRelation inserts the relation. The unique index on referee_id makes
// the check-then-insert race safe: the loser of a concurrent bind gets
// ErrAlreadyBound from the database, not a second row.
func (r *Repository) CreateRelation(ctx context.Context, rel *Relation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referrals (id, referral_code, referrer_id, referrer_name,
			referee_id, referee_name, reward, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rel.ID, rel.ReferralCode, rel.ReferrerID, rel.ReferrerName,
		rel.RefereeID, rel.RefereeName, rel.Reward, rel.Status, rel.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyBound
		}
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE members SET referred_by = $1, updated_at = now() WHERE id = $2`,
		rel.ReferralCode, rel.RefereeID)
	return err
}

// FindByReferee returns the referee's relation, or nil when none exists.
func (r *Repository) FindByReferee(ctx context.Context, refereeID string) (*Relation, error) {
	var rel Relation
	err := r.db.GetContext(ctx, &rel, `
		SELECT id, referral_code, referrer_id, referrer_name, referee_id,
			referee_name, reward, status, created_at
		FROM referrals WHERE referee_id = $1
	`, refereeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *Repository) ListByReferrer(ctx context.Context, referrerID string) ([]Relation, error) {
	var rels []Relation
	err := r.db.SelectContext(ctx, &rels, `
		SELECT id, referral_code, referrer_id, referrer_name, referee_id,
			referee_name, reward, status, created_at
		FROM referrals WHERE referrer_id = $1
		ORDER BY created_at DESC
	`, referrerID)
	return rels, err
}

// PayReward credits the referrer and appends the reward transaction in one
// database transaction: lock referrer row, add points and lifetime earned,
// recompute tier, insert the transaction naming both parties, bump the
// relation's accumulated reward.
func (r *Repository) PayReward(ctx context.Context, rel *Relation, reward int64, txType, message string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	referrer, err := r.members.LockTx(ctx, tx, rel.ReferrerID)
	if err != nil {
		return 0, err
	}

	referrer.Balance += reward
	referrer.TotalEarned += reward
	referrer.Tier = tier.For(referrer.Balance, r.rules.Tiers)
	if err := r.members.ApplyBalanceTx(ctx, tx, referrer); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, member_id, type, sender_id, sender_name,
			receiver_id, receiver_name, points, message, balance_after, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'completed')
	`, uuid.New(), referrer.ID, txType, rel.RefereeID, rel.RefereeName,
		referrer.ID, referrer.Name, reward, message, referrer.Balance); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE referrals SET reward = reward + $1 WHERE id = $2
	`, reward, rel.ID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return referrer.Balance, nil
}
