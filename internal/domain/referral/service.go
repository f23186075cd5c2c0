package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pointloop/loyalty-api/internal/config"
	"github.com/pointloop/loyalty-api/internal/domain/member"
)

// Service is the referral engine: binding at registration time and paying
// percentage rewards on purchase/withdraw events. Binding never pays points;
// the old flat signup bonus scheme is retired.
type Service struct {
	repo      *Repository
	directory *member.Directory
	cache     *member.Cache
	rules     config.Rules
}

func NewService(repo *Repository, directory *member.Directory, cache *member.Cache, rules config.Rules) *Service {
	return &Service{repo: repo, directory: directory, cache: cache, rules: rules}
}

// Bind resolves the referral code and records the relation. First bind wins;
// a later attempt for the same referee fails with ErrAlreadyBound.
func (s *Service) Bind(ctx context.Context, refereeID, refereeName, code string) (*Relation, error) {
	referrer, err := s.directory.FindByReferralCode(ctx, code)
	if errors.Is(err, member.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if referrer.ID == refereeID {
		return nil, ErrSelfReferral
	}

	rel := &Relation{
		ID:           uuid.New(),
		ReferralCode: referrer.ReferralCode,
		ReferrerID:   referrer.ID,
		ReferrerName: referrer.Name,
		RefereeID:    refereeID,
		RefereeName:  refereeName,
		Status:       RelationStatusActive,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.CreateRelation(ctx, rel); err != nil {
		return nil, err
	}

	log.Info().
		Str("referrer_id", referrer.ID).
		Str("referee_id", refereeID).
		Str("code", referrer.ReferralCode).
		Msg("referral relation bound")
	return rel, nil
}

// Reward pays the referee's referrer floor(amount * rate) points for a
// purchase or withdraw event. No referrer or a zero reward is a no-op result.
func (s *Service) Reward(ctx context.Context, refereeID string, amount int64, kind EventKind) (*RewardResult, error) {
	rel, err := s.repo.FindByReferee(ctx, refereeID)
	if err != nil {
		return nil, err
	}
	if rel == nil || rel.Status != RelationStatusActive {
		return &RewardResult{Paid: false}, nil
	}

	reward := int64(float64(amount) * s.rules.RewardRate)
	if reward <= 0 {
		return &RewardResult{Paid: false}, nil
	}

	txType := TxTypePurchaseReward
	verb := "purchased"
	if kind == EventWithdraw {
		txType = TxTypeWithdrawReward
		verb = "withdrew"
	}
	message := fmt.Sprintf("Referral reward: %s %s %d points (%d%%)",
		rel.RefereeName, verb, amount, int(s.rules.RewardRate*100))

	newBalance, err := s.repo.PayReward(ctx, rel, reward, txType, message)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, rel.ReferrerID)

	log.Info().
		Str("referrer_id", rel.ReferrerID).
		Str("referee_id", refereeID).
		Str("event", string(kind)).
		Int64("amount", amount).
		Int64("reward", reward).
		Int64("referrer_balance", newBalance).
		Msg("referral reward paid")

	return &RewardResult{
		Paid:         true,
		ReferrerID:   rel.ReferrerID,
		ReferrerName: rel.ReferrerName,
		Reward:       reward,
	}, nil
}

// Verify resolves a referral code to its owner without binding anything.
func (s *Service) Verify(ctx context.Context, code string) (*member.Member, error) {
	referrer, err := s.directory.FindByReferralCode(ctx, code)
	if errors.Is(err, member.ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	return referrer, nil
}

// ListByReferrer returns the relations a member has recruited, newest first.
func (s *Service) ListByReferrer(ctx context.Context, referrerID string) ([]Relation, error) {
	return s.repo.ListByReferrer(ctx, referrerID)
}
