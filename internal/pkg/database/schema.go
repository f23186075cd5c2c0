package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// EnsureSchema creates the ledger tables when they do not exist yet. All
// statements are idempotent so tests and fresh deployments can share one path.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS members (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0,
			tier TEXT NOT NULL DEFAULT 'BRONZE',
			total_earned BIGINT NOT NULL DEFAULT 0,
			total_spent BIGINT NOT NULL DEFAULT 0,
			referral_code TEXT NOT NULL UNIQUE,
			referred_by TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			login_name TEXT,
			password_hash TEXT NOT NULL DEFAULT '',
			last_login_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_members_login_name
			ON members (login_name) WHERE login_name IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			member_id TEXT NOT NULL,
			type TEXT NOT NULL,
			sender_id TEXT NOT NULL DEFAULT '',
			sender_name TEXT NOT NULL DEFAULT '',
			receiver_id TEXT NOT NULL DEFAULT '',
			receiver_name TEXT NOT NULL DEFAULT '',
			points BIGINT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			balance_after BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'completed',
			reference_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_member
			ON transactions (member_id, created_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference
			ON transactions (type, reference_id) WHERE reference_id IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS referrals (
			id UUID PRIMARY KEY,
			referral_code TEXT NOT NULL,
			referrer_id TEXT NOT NULL,
			referrer_name TEXT NOT NULL DEFAULT '',
			referee_id TEXT NOT NULL UNIQUE,
			referee_name TEXT NOT NULL DEFAULT '',
			reward BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_referrals_referrer
			ON referrals (referrer_id)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id UUID PRIMARY KEY,
			order_number TEXT NOT NULL,
			member_id TEXT NOT NULL,
			member_name TEXT NOT NULL DEFAULT '',
			points BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL,
			payment_method TEXT NOT NULL DEFAULT '',
			payment_reference TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT,
			referrer_reward BIGINT NOT NULL DEFAULT 0,
			balance_before BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'completed',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`ALTER TABLE purchases ADD COLUMN IF NOT EXISTS idempotency_key TEXT`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_purchases_idempotency
			ON purchases (idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_member
			ON purchases (member_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS withdrawals (
			id UUID PRIMARY KEY,
			order_number TEXT NOT NULL,
			member_id TEXT NOT NULL,
			member_name TEXT NOT NULL DEFAULT '',
			points BIGINT NOT NULL,
			amount_before_fee BIGINT NOT NULL,
			fee BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			exchange_rate DOUBLE PRECISION NOT NULL,
			bank_name TEXT NOT NULL DEFAULT '',
			bank_account TEXT NOT NULL DEFAULT '',
			account_name TEXT NOT NULL DEFAULT '',
			referrer_reward BIGINT NOT NULL DEFAULT 0,
			balance_before BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_withdrawals_member
			ON withdrawals (member_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	log.Info().Msg("Database schema ensured")
	return nil
}
