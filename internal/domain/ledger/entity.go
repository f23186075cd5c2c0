package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TxType enumerates the transaction types the ledger writes. The referral
// engine contributes the two reward types.
type TxType string

const (
	TxTypeRegister       TxType = "register"
	TxTypeTransferOut    TxType = "transfer_out"
	TxTypeTransferIn     TxType = "transfer_in"
	TxTypeAdminAdd       TxType = "admin_add"
	TxTypeAdminDeduct    TxType = "admin_deduct"
	TxTypePurchase       TxType = "purchase"
	TxTypeWithdraw       TxType = "withdraw"
	TxTypePurchaseReward TxType = "referral_purchase_reward"
	TxTypeWithdrawReward TxType = "referral_withdraw_reward"
)

// TxStatus is the status of a transaction row. Withdraw transactions start
// pending because payout is a manual back-office step.
type TxStatus string

const (
	TxStatusCompleted TxStatus = "completed"
	TxStatusPending   TxStatus = "pending"
)

// Transaction is an append-only ledger row. MemberID is the affected party:
// the member whose balance the signed Points delta applies to. A member's
// balance is always reconstructible as the sum of deltas of their rows.
type Transaction struct {
	ID           uuid.UUID `db:"id" json:"id"`
	MemberID     string    `db:"member_id" json:"member_id"`
	Type         TxType    `db:"type" json:"type"`
	SenderID     string    `db:"sender_id" json:"sender_id,omitempty"`
	SenderName   string    `db:"sender_name" json:"sender_name,omitempty"`
	ReceiverID   string    `db:"receiver_id" json:"receiver_id,omitempty"`
	ReceiverName string    `db:"receiver_name" json:"receiver_name,omitempty"`
	Points       int64     `db:"points" json:"points"`
	Message      string    `db:"message" json:"message,omitempty"`
	BalanceAfter int64     `db:"balance_after" json:"balance_after"`
	Status       TxStatus  `db:"status" json:"status"`
	ReferenceID  *string   `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// RecordStatus is the processing status of purchase and withdrawal records.
// Transitions are closed: pending -> processing -> completed | rejected.
type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "pending"
	RecordStatusProcessing RecordStatus = "processing"
	RecordStatusCompleted  RecordStatus = "completed"
	RecordStatusRejected   RecordStatus = "rejected"
)

var recordTransitions = map[RecordStatus][]RecordStatus{
	RecordStatusPending:    {RecordStatusProcessing, RecordStatusCompleted, RecordStatusRejected},
	RecordStatusProcessing: {RecordStatusCompleted, RecordStatusRejected},
}

// Valid reports whether s is a known record status.
func (s RecordStatus) Valid() bool {
	switch s {
	case RecordStatusPending, RecordStatusProcessing, RecordStatusCompleted, RecordStatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether s may move to next. Completed and rejected
// are terminal.
func (s RecordStatus) CanTransition(next RecordStatus) bool {
	for _, allowed := range recordTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Purchase records a points-buy event. Status transitions are back-office
// only and never re-mutate the balance.
type Purchase struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	OrderNumber      string       `db:"order_number" json:"order_number"`
	MemberID         string       `db:"member_id" json:"member_id"`
	MemberName       string       `db:"member_name" json:"member_name"`
	Points           int64        `db:"points" json:"points"`
	Amount           int64        `db:"amount" json:"amount"`
	UnitPrice        float64      `db:"unit_price" json:"unit_price"`
	PaymentMethod    string       `db:"payment_method" json:"payment_method,omitempty"`
	PaymentReference string       `db:"payment_reference" json:"payment_reference,omitempty"`
	IdempotencyKey   *string      `db:"idempotency_key" json:"-"`
	ReferrerReward   int64        `db:"referrer_reward" json:"referrer_reward"`
	BalanceBefore    int64        `db:"balance_before" json:"balance_before"`
	BalanceAfter     int64        `db:"balance_after" json:"balance_after"`
	Status           RecordStatus `db:"status" json:"status"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// Withdrawal records a points-cash-out event. It is created pending; funds
// move in a manual back-office step that only changes the status.
type Withdrawal struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	OrderNumber     string       `db:"order_number" json:"order_number"`
	MemberID        string       `db:"member_id" json:"member_id"`
	MemberName      string       `db:"member_name" json:"member_name"`
	Points          int64        `db:"points" json:"points"`
	AmountBeforeFee int64        `db:"amount_before_fee" json:"amount_before_fee"`
	Fee             int64        `db:"fee" json:"fee"`
	Amount          int64        `db:"amount" json:"amount"`
	ExchangeRate    float64      `db:"exchange_rate" json:"exchange_rate"`
	BankName        string       `db:"bank_name" json:"bank_name,omitempty"`
	BankAccount     string       `db:"bank_account" json:"bank_account,omitempty"`
	AccountName     string       `db:"account_name" json:"account_name,omitempty"`
	ReferrerReward  int64        `db:"referrer_reward" json:"referrer_reward"`
	BalanceBefore   int64        `db:"balance_before" json:"balance_before"`
	BalanceAfter    int64        `db:"balance_after" json:"balance_after"`
	Status          RecordStatus `db:"status" json:"status"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}
