package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pointloop/loyalty-api/internal/config"
	"github.com/pointloop/loyalty-api/internal/domain/member"
	"github.com/pointloop/loyalty-api/internal/pkg/tier"
)

// TransferOutcome reports both resulting balances of a committed transfer.
type TransferOutcome struct {
	SenderBalance   int64
	ReceiverBalance int64
	SenderName      string
	ReceiverName    string
}

// AdjustOutcome reports the before/after state of an admin adjustment.
type AdjustOutcome struct {
	OldBalance int64
	NewBalance int64
	OldTier    string
	NewTier    string
}

type Repository struct {
	db      *sqlx.DB
	members *member.Repository
	rules   config.Rules
}

func NewRepository(db *sqlx.DB, members *member.Repository, rules config.Rules) *Repository {
	return &Repository{db: db, members: members, rules: rules}
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *Repository) insertTransactionTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TxStatusCompleted
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, member_id, type, sender_id, sender_name,
			receiver_id, receiver_name, points, message, balance_after, status, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.MemberID, t.Type, t.SenderID, t.SenderName,
		t.ReceiverID, t.ReceiverName, t.Points, t.Message, t.BalanceAfter, t.Status, t.ReferenceID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrReferenceConflict
		}
		return err
	}
	return nil
}

// Register inserts the member row and the registration grant transaction in
// one database transaction.
func (r *Repository) Register(ctx context.Context, m *member.Member, grant int64) error {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m.Balance = grant
	m.TotalEarned = grant
	m.Tier = tier.For(grant, r.rules.Tiers)

	if err := r.members.CreateTx(ctx, tx, m); err != nil {
		return err
	}

	if err := r.insertTransactionTx(ctx, tx, &Transaction{
		MemberID:     m.ID,
		Type:         TxTypeRegister,
		ReceiverID:   m.ID,
		ReceiverName: m.Name,
		Points:       grant,
		Message:      "Registration grant",
		BalanceAfter: grant,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// Transfer moves points between two members. Both rows are locked FOR UPDATE
// in ascending id order so concurrent transfers touching the same pair cannot
// deadlock or race the read-modify-write.
func (r *Repository) Transfer(ctx context.Context, senderID, receiverID string, points int64, message string) (*TransferOutcome, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	lockOrder := []string{senderID, receiverID}
	if receiverID < senderID {
		lockOrder[0], lockOrder[1] = receiverID, senderID
	}

	locked := make(map[string]*member.Member, 2)
	for _, id := range lockOrder {
		m, err := r.members.LockTx(ctx, tx, id)
		if errors.Is(err, member.ErrNotFound) {
			if id == senderID {
				return nil, ErrSenderNotFound
			}
			return nil, ErrReceiverNotFound
		}
		if err != nil {
			return nil, err
		}
		locked[id] = m
	}
	sender, receiver := locked[senderID], locked[receiverID]

	if sender.Balance < points && !r.rules.AllowNegative {
		return nil, ErrInsufficientBalance
	}

	sender.Balance -= points
	sender.TotalSpent += points
	sender.Tier = tier.For(sender.Balance, r.rules.Tiers)

	receiver.Balance += points
	receiver.TotalEarned += points
	receiver.Tier = tier.For(receiver.Balance, r.rules.Tiers)

	if err := r.members.ApplyBalanceTx(ctx, tx, sender); err != nil {
		return nil, err
	}
	if err := r.members.ApplyBalanceTx(ctx, tx, receiver); err != nil {
		return nil, err
	}

	pair := Transaction{
		SenderID:     sender.ID,
		SenderName:   sender.Name,
		ReceiverID:   receiver.ID,
		ReceiverName: receiver.Name,
		Message:      message,
	}

	out := pair
	out.MemberID = sender.ID
	out.Type = TxTypeTransferOut
	out.Points = -points
	out.BalanceAfter = sender.Balance
	if err := r.insertTransactionTx(ctx, tx, &out); err != nil {
		return nil, err
	}

	in := pair
	in.MemberID = receiver.ID
	in.Type = TxTypeTransferIn
	in.Points = points
	in.BalanceAfter = receiver.Balance
	if err := r.insertTransactionTx(ctx, tx, &in); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &TransferOutcome{
		SenderBalance:   sender.Balance,
		ReceiverBalance: receiver.Balance,
		SenderName:      sender.Name,
		ReceiverName:    receiver.Name,
	}, nil
}

// AdminAdjust applies a signed delta to one member. Positive deltas count as
// lifetime earned, negative as lifetime spent.
func (r *Repository) AdminAdjust(ctx context.Context, memberID string, delta int64, reason string) (*AdjustOutcome, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := r.members.LockTx(ctx, tx, memberID)
	if errors.Is(err, member.ErrNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	oldBalance, oldTier := m.Balance, m.Tier
	newBalance := m.Balance + delta
	if newBalance < 0 && !r.rules.AllowNegative {
		return nil, ErrNegativeBalance
	}

	m.Balance = newBalance
	if delta > 0 {
		m.TotalEarned += delta
	} else {
		m.TotalSpent += -delta
	}
	m.Tier = tier.For(newBalance, r.rules.Tiers)

	if err := r.members.ApplyBalanceTx(ctx, tx, m); err != nil {
		return nil, err
	}

	txType := TxTypeAdminAdd
	if delta < 0 {
		txType = TxTypeAdminDeduct
	}
	if reason == "" {
		reason = "Admin adjustment"
	}
	if err := r.insertTransactionTx(ctx, tx, &Transaction{
		MemberID:     m.ID,
		Type:         txType,
		ReceiverID:   m.ID,
		ReceiverName: m.Name,
		Points:       delta,
		Message:      reason,
		BalanceAfter: newBalance,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &AdjustOutcome{
		OldBalance: oldBalance,
		NewBalance: newBalance,
		OldTier:    oldTier,
		NewTier:    m.Tier,
	}, nil
}

// PurchaseMeta carries payment details and the optional idempotency key.
type PurchaseMeta struct {
	Method         string
	Reference      string
	IdempotencyKey string
}

// Purchase credits purchased points and writes the purchase record. When an
// idempotency key repeats with the same points the stored record is returned
// and nothing mutates; a repeat with different points is a conflict.
func (r *Repository) Purchase(ctx context.Context, memberID string, points int64, meta PurchaseMeta) (*Purchase, bool, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	m, err := r.members.LockTx(ctx, tx, memberID)
	if errors.Is(err, member.ErrNotFound) {
		return nil, false, ErrMemberNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if meta.IdempotencyKey != "" {
		existing, found, err := r.purchaseByKeyTx(ctx, tx, meta.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if found {
			if existing.Points != points {
				return nil, false, ErrReferenceConflict
			}
			return existing, true, nil
		}
	}

	balanceBefore := m.Balance
	m.Balance += points
	m.TotalEarned += points
	m.Tier = tier.For(m.Balance, r.rules.Tiers)
	if err := r.members.ApplyBalanceTx(ctx, tx, m); err != nil {
		return nil, false, err
	}

	var key *string
	if meta.IdempotencyKey != "" {
		key = &meta.IdempotencyKey
	}
	if err := r.insertTransactionTx(ctx, tx, &Transaction{
		MemberID:     m.ID,
		Type:         TxTypePurchase,
		ReceiverID:   m.ID,
		ReceiverName: m.Name,
		Points:       points,
		Message:      fmt.Sprintf("Purchased %d points", points),
		BalanceAfter: m.Balance,
		ReferenceID:  key,
	}); err != nil {
		return nil, false, err
	}

	now := time.Now()
	p := &Purchase{
		ID:               uuid.New(),
		OrderNumber:      fmt.Sprintf("PUR-%d", now.UnixMilli()),
		MemberID:         m.ID,
		MemberName:       m.Name,
		Points:           points,
		Amount:           int64(float64(points) * r.rules.UnitPrice),
		UnitPrice:        r.rules.UnitPrice,
		PaymentMethod:    meta.Method,
		PaymentReference: meta.Reference,
		IdempotencyKey:   key,
		BalanceBefore:    balanceBefore,
		BalanceAfter:     m.Balance,
		Status:           RecordStatusCompleted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (id, order_number, member_id, member_name, points,
			amount, unit_price, payment_method, payment_reference, idempotency_key,
			referrer_reward, balance_before, balance_after, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, p.ID, p.OrderNumber, p.MemberID, p.MemberName, p.Points,
		p.Amount, p.UnitPrice, p.PaymentMethod, p.PaymentReference, p.IdempotencyKey,
		p.ReferrerReward, p.BalanceBefore, p.BalanceAfter, p.Status, p.CreatedAt, p.UpdatedAt); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return p, false, nil
}

func (r *Repository) purchaseByKeyTx(ctx context.Context, tx *sqlx.Tx, key string) (*Purchase, bool, error) {
	var p Purchase
	err := tx.GetContext(ctx, &p, `
		SELECT id, order_number, member_id, member_name, points, amount,
			unit_price, payment_method, payment_reference, idempotency_key,
			referrer_reward, balance_before, balance_after, status, created_at, updated_at
		FROM purchases
		WHERE idempotency_key = $1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

// BankMeta carries the payout destination for a withdrawal.
type BankMeta struct {
	BankName    string
	BankAccount string
	AccountName string
}

// Withdraw debits points and writes the pending withdrawal record. Payout is
// floor(points * exchange rate) minus the flat fee.
func (r *Repository) Withdraw(ctx context.Context, memberID string, points int64, bank BankMeta) (*Withdrawal, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	m, err := r.members.LockTx(ctx, tx, memberID)
	if errors.Is(err, member.ErrNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	if m.Balance < points && !r.rules.AllowNegative {
		return nil, ErrInsufficientBalance
	}

	balanceBefore := m.Balance
	amountBeforeFee := int64(float64(points) * r.rules.ExchangeRate)
	amount := amountBeforeFee - r.rules.WithdrawFee
	if amount < 0 {
		// The fee would exceed the converted value; nothing to pay out.
		return nil, ErrBelowMinimumWithdrawal
	}

	m.Balance -= points
	m.TotalSpent += points
	m.Tier = tier.For(m.Balance, r.rules.Tiers)
	if err := r.members.ApplyBalanceTx(ctx, tx, m); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Withdrew %d points for %d", points, amount)
	if bank.BankName != "" && len(bank.BankAccount) >= 4 {
		message += fmt.Sprintf(" to %s (****%s)", bank.BankName, bank.BankAccount[len(bank.BankAccount)-4:])
	}
	if err := r.insertTransactionTx(ctx, tx, &Transaction{
		MemberID:     m.ID,
		Type:         TxTypeWithdraw,
		SenderID:     m.ID,
		SenderName:   m.Name,
		Points:       -points,
		Message:      message,
		BalanceAfter: m.Balance,
		Status:       TxStatusPending,
	}); err != nil {
		return nil, err
	}

	now := time.Now()
	wd := &Withdrawal{
		ID:              uuid.New(),
		OrderNumber:     fmt.Sprintf("WD-%d", now.UnixMilli()),
		MemberID:        m.ID,
		MemberName:      m.Name,
		Points:          points,
		AmountBeforeFee: amountBeforeFee,
		Fee:             r.rules.WithdrawFee,
		Amount:          amount,
		ExchangeRate:    r.rules.ExchangeRate,
		BankName:        bank.BankName,
		BankAccount:     bank.BankAccount,
		AccountName:     bank.AccountName,
		BalanceBefore:   balanceBefore,
		BalanceAfter:    m.Balance,
		Status:          RecordStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawals (id, order_number, member_id, member_name, points,
			amount_before_fee, fee, amount, exchange_rate, bank_name, bank_account,
			account_name, referrer_reward, balance_before, balance_after, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, wd.ID, wd.OrderNumber, wd.MemberID, wd.MemberName, wd.Points,
		wd.AmountBeforeFee, wd.Fee, wd.Amount, wd.ExchangeRate, wd.BankName, wd.BankAccount,
		wd.AccountName, wd.ReferrerReward, wd.BalanceBefore, wd.BalanceAfter, wd.Status,
		wd.CreatedAt, wd.UpdatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return wd, nil
}

// ListTransactions returns one page of a member's history, newest first.
func (r *Repository) ListTransactions(ctx context.Context, memberID string, page, pageSize int) ([]Transaction, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM transactions WHERE member_id = $1`, memberID); err != nil {
		return nil, 0, err
	}

	var txs []Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT id, member_id, type, sender_id, sender_name, receiver_id,
			receiver_name, points, message, balance_after, status, reference_id, created_at
		FROM transactions
		WHERE member_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, memberID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ListPurchases returns one page of a member's purchase records, newest first.
func (r *Repository) ListPurchases(ctx context.Context, memberID string, page, pageSize int) ([]Purchase, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM purchases WHERE member_id = $1`, memberID); err != nil {
		return nil, 0, err
	}

	var records []Purchase
	err := r.db.SelectContext(ctx, &records, `
		SELECT id, order_number, member_id, member_name, points, amount,
			unit_price, payment_method, payment_reference, idempotency_key,
			referrer_reward, balance_before, balance_after, status, created_at, updated_at
		FROM purchases
		WHERE member_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, memberID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListWithdrawals returns one page of a member's withdrawal records, newest
// first.
func (r *Repository) ListWithdrawals(ctx context.Context, memberID string, page, pageSize int) ([]Withdrawal, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM withdrawals WHERE member_id = $1`, memberID); err != nil {
		return nil, 0, err
	}

	var records []Withdrawal
	err := r.db.SelectContext(ctx, &records, `
		SELECT id, order_number, member_id, member_name, points, amount_before_fee,
			fee, amount, exchange_rate, bank_name, bank_account, account_name,
			referrer_reward, balance_before, balance_after, status, created_at, updated_at
		FROM withdrawals
		WHERE member_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, memberID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// SumDeltas reconstructs a member's balance from the transaction log.
func (r *Repository) SumDeltas(ctx context.Context, memberID string) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum,
		`SELECT COALESCE(SUM(points), 0) FROM transactions WHERE member_id = $1`, memberID)
	return sum, err
}

// SetPurchaseReward records the paid referral reward on the purchase record.
func (r *Repository) SetPurchaseReward(ctx context.Context, id uuid.UUID, reward int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET referrer_reward = $1, updated_at = now() WHERE id = $2`, reward, id)
	return err
}

// SetWithdrawalReward records the paid referral reward on the withdrawal record.
func (r *Repository) SetWithdrawalReward(ctx context.Context, id uuid.UUID, reward int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE withdrawals SET referrer_reward = $1, updated_at = now() WHERE id = $2`, reward, id)
	return err
}

// UpdateWithdrawalStatus applies a back-office status transition. Status only;
// the balance is never re-mutated here.
func (r *Repository) UpdateWithdrawalStatus(ctx context.Context, id uuid.UUID, next RecordStatus) (*Withdrawal, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var wd Withdrawal
	err = tx.GetContext(ctx, &wd, `
		SELECT id, order_number, member_id, member_name, points, amount_before_fee,
			fee, amount, exchange_rate, bank_name, bank_account, account_name,
			referrer_reward, balance_before, balance_after, status, created_at, updated_at
		FROM withdrawals WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if !wd.Status.CanTransition(next) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE withdrawals SET status = $1, updated_at = now() WHERE id = $2`, next, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	wd.Status = next
	return &wd, nil
}

// UpdatePurchaseStatus applies a back-office status transition to a purchase
// record.
func (r *Repository) UpdatePurchaseStatus(ctx context.Context, id uuid.UUID, next RecordStatus) (*Purchase, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var p Purchase
	err = tx.GetContext(ctx, &p, `
		SELECT id, order_number, member_id, member_name, points, amount,
			unit_price, payment_method, payment_reference, idempotency_key,
			referrer_reward, balance_before, balance_after, status, created_at, updated_at
		FROM purchases WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if !p.Status.CanTransition(next) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE purchases SET status = $1, updated_at = now() WHERE id = $2`, next, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	p.Status = next
	return &p, nil
}

// GetWithdrawal loads one withdrawal record.
func (r *Repository) GetWithdrawal(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	var wd Withdrawal
	err := r.db.GetContext(ctx, &wd, `
		SELECT id, order_number, member_id, member_name, points, amount_before_fee,
			fee, amount, exchange_rate, bank_name, bank_account, account_name,
			referrer_reward, balance_before, balance_after, status, created_at, updated_at
		FROM withdrawals WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wd, nil
}
