package member

import (
	"database/sql"
	"time"
)

// Status is the account status of a member.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusBlocked   Status = "blocked"
)

// Valid reports whether s is a known account status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusBlocked:
		return true
	}
	return false
}

// Member is the directory row. Balance, tier and the lifetime counters are
// owned by the ledger engine; nothing else mutates them.
type Member struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Phone        string         `db:"phone"`
	Email        string         `db:"email"`
	AvatarURL    string         `db:"avatar_url"`
	Balance      int64          `db:"balance"`
	Tier         string         `db:"tier"`
	TotalEarned  int64          `db:"total_earned"`
	TotalSpent   int64          `db:"total_spent"`
	ReferralCode string         `db:"referral_code"`
	ReferredBy   string         `db:"referred_by"`
	Status       Status         `db:"status"`
	LoginName    sql.NullString `db:"login_name"`
	PasswordHash string         `db:"password_hash"`
	LastLoginAt  sql.NullTime   `db:"last_login_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// Snapshot is the denormalized, cacheable view of a member. It carries no
// credentials and is safe to return to clients.
type Snapshot struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	Balance      int64      `json:"balance"`
	Tier         string     `json:"tier"`
	TotalEarned  int64      `json:"total_earned"`
	TotalSpent   int64      `json:"total_spent"`
	ReferralCode string     `json:"referral_code"`
	ReferredBy   string     `json:"referred_by,omitempty"`
	Status       Status     `json:"status"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Snapshot builds the cacheable view.
func (m *Member) Snapshot() *Snapshot {
	s := &Snapshot{
		ID:           m.ID,
		Name:         m.Name,
		Phone:        m.Phone,
		Email:        m.Email,
		AvatarURL:    m.AvatarURL,
		Balance:      m.Balance,
		Tier:         m.Tier,
		TotalEarned:  m.TotalEarned,
		TotalSpent:   m.TotalSpent,
		ReferralCode: m.ReferralCode,
		ReferredBy:   m.ReferredBy,
		Status:       m.Status,
		CreatedAt:    m.CreatedAt,
	}
	if m.LastLoginAt.Valid {
		t := m.LastLoginAt.Time
		s.LastLoginAt = &t
	}
	return s
}
