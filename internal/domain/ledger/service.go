package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pointloop/loyalty-api/internal/config"
	"github.com/pointloop/loyalty-api/internal/domain/member"
	"github.com/pointloop/loyalty-api/internal/domain/referral"
)

// RegisterResult is the outcome of a completed registration.
type RegisterResult struct {
	Member       *member.Snapshot
	InitialGrant int64
	ReferrerName string
	Bound        bool
}

// PurchaseResult is the outcome of a completed points purchase. RewardPending
// reports that the purchase committed but the referral reward payout failed
// and awaits reconciliation.
type PurchaseResult struct {
	Purchase      *Purchase
	Duplicate     bool
	Reward        *referral.RewardResult
	RewardPending bool
}

// WithdrawResult is the outcome of a submitted withdrawal.
type WithdrawResult struct {
	Withdrawal    *Withdrawal
	Reward        *referral.RewardResult
	RewardPending bool
}

// Engine orchestrates all balance mutations: registration, transfers, admin
// adjustments, purchases and withdrawals. Every mutation commits atomically
// in the repository; referral rewards are paid after the primary commit.
type Engine struct {
	repo      *Repository
	directory *member.Directory
	referrals *referral.Service
	cache     *member.Cache
	rules     config.Rules
}

func NewEngine(repo *Repository, directory *member.Directory, referrals *referral.Service, cache *member.Cache, rules config.Rules) *Engine {
	return &Engine{repo: repo, directory: directory, referrals: referrals, cache: cache, rules: rules}
}

// Register creates a member with the initial grant and optionally binds a
// referral relation. The referral code is resolved before any write so a bad
// code rejects the whole registration.
func (e *Engine) Register(ctx context.Context, p member.NewMemberParams, referralCode string) (*RegisterResult, error) {
	var referrerName string
	if referralCode != "" {
		referrer, err := e.referrals.Verify(ctx, referralCode)
		if err != nil {
			return nil, err
		}
		referrerName = referrer.Name
	}

	m, err := e.directory.NewMember(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := e.repo.Register(ctx, m, e.rules.InitialPoints); err != nil {
		return nil, err
	}

	result := &RegisterResult{
		Member:       m.Snapshot(),
		InitialGrant: e.rules.InitialPoints,
	}

	if referralCode != "" {
		_, err := e.referrals.Bind(ctx, m.ID, m.Name, referralCode)
		switch {
		case err == nil:
			result.Bound = true
			result.ReferrerName = referrerName
		case errors.Is(err, referral.ErrSelfReferral):
			return nil, err
		default:
			// The member exists; a failed bind degrades rather than rolls back.
			log.Error().Err(err).
				Str("member_id", m.ID).
				Str("code", referralCode).
				Msg("referral bind failed after registration")
		}
	}

	log.Info().
		Str("member_id", m.ID).
		Int64("initial_points", e.rules.InitialPoints).
		Bool("referred", result.Bound).
		Msg("member registered")
	return result, nil
}

// Transfer moves points from sender to receiver.
func (e *Engine) Transfer(ctx context.Context, senderID, receiverID string, points int64, message string) (*TransferOutcome, error) {
	if points < e.rules.MinTransfer {
		return nil, ErrInvalidAmount
	}
	if senderID == receiverID {
		return nil, ErrSelfTransfer
	}

	out, err := e.repo.Transfer(ctx, senderID, receiverID, points, message)
	if err != nil {
		return nil, err
	}
	e.cache.Invalidate(ctx, senderID, receiverID)

	log.Info().
		Str("sender_id", senderID).
		Str("receiver_id", receiverID).
		Int64("points", points).
		Msg("transfer completed")
	return out, nil
}

// AdminAdjust applies a signed delta on the admin path. Zero is rejected.
func (e *Engine) AdminAdjust(ctx context.Context, memberID string, delta int64, reason string) (*AdjustOutcome, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}

	out, err := e.repo.AdminAdjust(ctx, memberID, delta, reason)
	if err != nil {
		return nil, err
	}
	e.cache.Invalidate(ctx, memberID)

	log.Info().
		Str("member_id", memberID).
		Int64("delta", delta).
		Int64("old_balance", out.OldBalance).
		Int64("new_balance", out.NewBalance).
		Str("reason", reason).
		Msg("admin adjustment applied")
	return out, nil
}

// Purchase credits bought points, then pays the referral reward. A reward
// failure after the purchase committed degrades: the purchase stands and the
// payout is flagged for reconciliation.
func (e *Engine) Purchase(ctx context.Context, memberID string, points int64, meta PurchaseMeta) (*PurchaseResult, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}

	p, duplicate, err := e.repo.Purchase(ctx, memberID, points, meta)
	if err != nil {
		return nil, err
	}
	e.cache.Invalidate(ctx, memberID)

	result := &PurchaseResult{Purchase: p, Duplicate: duplicate}
	if duplicate {
		return result, nil
	}

	reward, err := e.referrals.Reward(ctx, memberID, points, referral.EventPurchase)
	if err != nil {
		log.Error().Err(err).
			Str("member_id", memberID).
			Str("purchase_id", p.ID.String()).
			Int64("points", points).
			Msg("reconciliation_needed: purchase referral reward failed")
		result.RewardPending = true
		return result, nil
	}
	result.Reward = reward
	if reward.Paid {
		if err := e.repo.SetPurchaseReward(ctx, p.ID, reward.Reward); err != nil {
			log.Warn().Err(err).
				Str("purchase_id", p.ID.String()).
				Msg("failed to record referrer reward on purchase")
		} else {
			p.ReferrerReward = reward.Reward
		}
	}
	return result, nil
}

// Withdraw debits points into a pending cash-out, then pays the referral
// reward on the withdrawn points.
func (e *Engine) Withdraw(ctx context.Context, memberID string, points int64, bank BankMeta) (*WithdrawResult, error) {
	if points < e.rules.MinWithdrawal {
		return nil, ErrBelowMinimumWithdrawal
	}

	wd, err := e.repo.Withdraw(ctx, memberID, points, bank)
	if err != nil {
		return nil, err
	}
	e.cache.Invalidate(ctx, memberID)

	result := &WithdrawResult{Withdrawal: wd}

	reward, err := e.referrals.Reward(ctx, memberID, points, referral.EventWithdraw)
	if err != nil {
		log.Error().Err(err).
			Str("member_id", memberID).
			Str("withdrawal_id", wd.ID.String()).
			Int64("points", points).
			Msg("reconciliation_needed: withdraw referral reward failed")
		result.RewardPending = true
		return result, nil
	}
	result.Reward = reward
	if reward.Paid {
		if err := e.repo.SetWithdrawalReward(ctx, wd.ID, reward.Reward); err != nil {
			log.Warn().Err(err).
				Str("withdrawal_id", wd.ID.String()).
				Msg("failed to record referrer reward on withdrawal")
		} else {
			wd.ReferrerReward = reward.Reward
		}
	}

	log.Info().
		Str("member_id", memberID).
		Int64("points", points).
		Int64("amount", wd.Amount).
		Msg("withdrawal submitted")
	return result, nil
}

// Transactions returns one page of a member's ledger history, newest first.
func (e *Engine) Transactions(ctx context.Context, memberID string, page, pageSize int) ([]Transaction, int, error) {
	if _, err := e.directory.FindByID(ctx, memberID); err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return nil, 0, ErrMemberNotFound
		}
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return e.repo.ListTransactions(ctx, memberID, page, pageSize)
}

// Purchases returns one page of a member's purchase records.
func (e *Engine) Purchases(ctx context.Context, memberID string, page, pageSize int) ([]Purchase, int, error) {
	if _, err := e.directory.FindByID(ctx, memberID); err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return nil, 0, ErrMemberNotFound
		}
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return e.repo.ListPurchases(ctx, memberID, page, pageSize)
}

// Withdrawals returns one page of a member's withdrawal records.
func (e *Engine) Withdrawals(ctx context.Context, memberID string, page, pageSize int) ([]Withdrawal, int, error) {
	if _, err := e.directory.FindByID(ctx, memberID); err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return nil, 0, ErrMemberNotFound
		}
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return e.repo.ListWithdrawals(ctx, memberID, page, pageSize)
}

// ReconstructBalance sums a member's transaction deltas. Used by audits to
// check the stored balance against the log.
func (e *Engine) ReconstructBalance(ctx context.Context, memberID string) (int64, error) {
	return e.repo.SumDeltas(ctx, memberID)
}

// SetWithdrawalStatus drives the back-office payout workflow.
func (e *Engine) SetWithdrawalStatus(ctx context.Context, id uuid.UUID, next RecordStatus) (*Withdrawal, error) {
	if !next.Valid() {
		return nil, ErrInvalidTransition
	}
	wd, err := e.repo.UpdateWithdrawalStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("withdrawal_id", id.String()).
		Str("status", string(next)).
		Msg("withdrawal status updated")
	return wd, nil
}

// SetPurchaseStatus drives the back-office purchase review workflow.
func (e *Engine) SetPurchaseStatus(ctx context.Context, id uuid.UUID, next RecordStatus) (*Purchase, error) {
	if !next.Valid() {
		return nil, ErrInvalidTransition
	}
	p, err := e.repo.UpdatePurchaseStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("purchase_id", id.String()).
		Str("status", string(next)).
		Msg("purchase status updated")
	return p, nil
}
