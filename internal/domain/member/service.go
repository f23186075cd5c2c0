package member

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pointloop/loyalty-api/internal/pkg/jwt"
	"github.com/pointloop/loyalty-api/internal/pkg/password"
	"github.com/pointloop/loyalty-api/internal/pkg/refcode"
)

// codeAttempts bounds the collision retry loop at the standard code length.
const codeAttempts = 5

// NewMemberParams carries the caller-supplied profile for a new member.
type NewMemberParams struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	AvatarURL string
	LoginName string
	Password  string
}

// Directory is the member directory service: identity lookups, creation with
// referral-code allocation, profile updates and login.
type Directory struct {
	repo  *Repository
	cache *Cache
	jwt   *jwt.Service
}

func NewDirectory(repo *Repository, cache *Cache, jwtService *jwt.Service) *Directory {
	return &Directory{repo: repo, cache: cache, jwt: jwtService}
}

func (d *Directory) Repo() *Repository { return d.repo }
func (d *Directory) Cache() *Cache     { return d.cache }

// NewMember builds a member row with a freshly allocated referral code. The
// row is not persisted; the ledger engine inserts it inside the registration
// transaction.
func (d *Directory) NewMember(ctx context.Context, p NewMemberParams) (*Member, error) {
	code, err := d.allocateReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	m := &Member{
		ID:           strings.TrimSpace(p.ID),
		Name:         p.Name,
		Phone:        strings.TrimSpace(p.Phone),
		Email:        p.Email,
		AvatarURL:    p.AvatarURL,
		ReferralCode: code,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.LoginName != "" {
		hash, err := password.Hash(p.Password)
		if err != nil {
			return nil, err
		}
		m.LoginName = sql.NullString{String: p.LoginName, Valid: true}
		m.PasswordHash = hash
	}
	return m, nil
}

// allocateReferralCode generates a standard-length code, retrying on the
// astronomically unlikely collision, then falls back to a longer code. Never
// loops unbounded.
func (d *Directory) allocateReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := refcode.Generate()
		_, err := d.repo.FindByReferralCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		log.Warn().Str("code", code).Msg("referral code collision, retrying")
	}
	for i := 0; i < codeAttempts; i++ {
		code := refcode.GenerateLong()
		_, err := d.repo.FindByReferralCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrCodeAllocation
}

func (d *Directory) FindByID(ctx context.Context, id string) (*Member, error) {
	return d.repo.FindByID(ctx, id)
}

func (d *Directory) FindByPhone(ctx context.Context, phone string) (*Member, error) {
	return d.repo.FindByPhone(ctx, phone)
}

func (d *Directory) FindByReferralCode(ctx context.Context, code string) (*Member, error) {
	return d.repo.FindByReferralCode(ctx, strings.TrimSpace(code))
}

func (d *Directory) FindByLoginName(ctx context.Context, loginName string) (*Member, error) {
	return d.repo.FindByLoginName(ctx, loginName)
}

// GetSnapshot serves the read-mostly profile view through the TTL cache.
func (d *Directory) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	return d.cache.GetOrLoad(ctx, id, func(ctx context.Context, id string) (*Snapshot, error) {
		m, err := d.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return m.Snapshot(), nil
	})
}

// UpdateProfile updates name/email/avatar and invalidates the snapshot.
func (d *Directory) UpdateProfile(ctx context.Context, id, name, email, avatarURL string) (*Snapshot, error) {
	if err := d.repo.UpdateProfile(ctx, id, name, email, avatarURL); err != nil {
		return nil, err
	}
	d.cache.Invalidate(ctx, id)

	m, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Info().Str("member_id", id).Msg("member profile updated")
	return m.Snapshot(), nil
}

// SetStatus changes the account status (admin path).
func (d *Directory) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if err := d.repo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	d.cache.Invalidate(ctx, id)
	log.Info().Str("member_id", id).Str("status", string(status)).Msg("member status changed")
	return nil
}

// Login verifies credentials and issues an access token.
func (d *Directory) Login(ctx context.Context, loginName, plainPassword string) (string, *Snapshot, error) {
	m, err := d.repo.FindByLoginName(ctx, loginName)
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if m.PasswordHash == "" || !password.Verify(plainPassword, m.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := d.jwt.GenerateAccessToken(m.ID, jwt.RoleMember)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	if err := d.repo.UpdateLastLogin(ctx, m.ID, now); err != nil {
		log.Warn().Err(err).Str("member_id", m.ID).Msg("failed to record last login")
	}
	d.cache.Invalidate(ctx, m.ID)

	m.LastLoginAt = sql.NullTime{Time: now, Valid: true}
	return token, m.Snapshot(), nil
}
