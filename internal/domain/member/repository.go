package member

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const memberColumns = `id, name, phone, email, avatar_url, balance, tier,
	total_earned, total_spent, referral_code, referred_by, status,
	login_name, password_hash, last_login_at, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sqlx.DB { return r.db }

func (r *Repository) FindByID(ctx context.Context, id string) (*Member, error) {
	var m Member
	err := r.db.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) FindByPhone(ctx context.Context, phone string) (*Member, error) {
	var m Member
	err := r.db.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM members WHERE phone = $1`, strings.TrimSpace(phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) FindByReferralCode(ctx context.Context, code string) (*Member, error) {
	var m Member
	err := r.db.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM members WHERE referral_code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) FindByLoginName(ctx context.Context, loginName string) (*Member, error) {
	var m Member
	err := r.db.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM members WHERE login_name = $1`, loginName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create persists a new member row. Duplicate id, phone, login name and
// referral code map to their domain errors.
func (r *Repository) Create(ctx context.Context, m *Member) error {
	return r.create(ctx, r.db, m)
}

// CreateTx persists a new member inside an external transaction. The ledger
// engine uses this so registration and its grant transaction commit together.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, m *Member) error {
	return r.create(ctx, tx, m)
}

func (r *Repository) create(ctx context.Context, q sqlx.ExtContext, m *Member) error {
	m.Phone = strings.TrimSpace(m.Phone)
	_, err := q.ExecContext(ctx, `
		INSERT INTO members (id, name, phone, email, avatar_url, balance, tier,
			total_earned, total_spent, referral_code, referred_by, status,
			login_name, password_hash, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, m.ID, m.Name, m.Phone, m.Email, m.AvatarURL, m.Balance, m.Tier,
		m.TotalEarned, m.TotalSpent, m.ReferralCode, m.ReferredBy, m.Status,
		m.LoginName, m.PasswordHash, m.LastLoginAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "members_pkey":
				return ErrDuplicateIdentity
			case "members_phone_key":
				return ErrDuplicatePhone
			case "members_referral_code_key":
				return ErrDuplicateReferralCode
			case "idx_members_login_name":
				return ErrDuplicateLoginName
			}
			return ErrDuplicateIdentity
		}
		return err
	}
	return nil
}

// UpdateProfile updates the mutable profile fields only. Balance fields are
// off limits here.
func (r *Repository) UpdateProfile(ctx context.Context, id, name, email, avatarURL string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE members SET name = $1, email = $2, avatar_url = $3, updated_at = now()
		WHERE id = $4
	`, name, email, avatarURL, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *Repository) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE members SET status = $1, updated_at = now() WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE members SET last_login_at = $1, updated_at = now() WHERE id = $2
	`, at, id)
	return err
}

// LockTx reads a member row under FOR UPDATE inside an external transaction.
// Every balance-changing sequence re-reads authoritative state through this
// before mutating; cached snapshots are never trusted for writes.
func (r *Repository) LockTx(ctx context.Context, tx *sqlx.Tx, id string) (*Member, error) {
	var m Member
	err := tx.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ApplyBalanceTx writes the balance-owned fields of a previously locked row.
// Only the ledger and referral engines call this, always inside the same
// transaction that holds the row lock.
func (r *Repository) ApplyBalanceTx(ctx context.Context, tx *sqlx.Tx, m *Member) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE members
		SET balance = $1, tier = $2, total_earned = $3, total_spent = $4, updated_at = now()
		WHERE id = $5
	`, m.Balance, m.Tier, m.TotalEarned, m.TotalSpent, m.ID)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
