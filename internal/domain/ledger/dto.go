package ledger

// RegisterRequest creates a member. Identity is optional; when empty a UUID
// is assigned. Login credentials are optional and only used for the dashboard.
type RegisterRequest struct {
	Identity     string `json:"identity" validate:"omitempty,min=1,max=64"`
	Name         string `json:"name" validate:"required,min=1,max=100"`
	Phone        string `json:"phone" validate:"required,phone"`
	Email        string `json:"email" validate:"omitempty,email"`
	AvatarURL    string `json:"avatar_url" validate:"omitempty,url"`
	ReferralCode string `json:"referral_code" validate:"omitempty,min=6,max=16"`
	LoginName    string `json:"login_name" validate:"omitempty,min=3,max=50"`
	Password     string `json:"password" validate:"required_with=LoginName,omitempty,min=8,max=72"`
}

type RegisterResponse struct {
	Member       interface{} `json:"member"`
	InitialGrant int64       `json:"initial_grant"`
	ReferrerName string      `json:"referrer_name,omitempty"`
	Referred     bool        `json:"referred"`
}

type TransferRequest struct {
	SenderID   string `json:"sender_id" validate:"required"`
	ReceiverID string `json:"receiver_id" validate:"required"`
	Points     int64  `json:"points" validate:"required,gt=0"`
	Message    string `json:"message" validate:"omitempty,max=200"`
}

type TransferResponse struct {
	SenderID        string `json:"sender_id"`
	SenderName      string `json:"sender_name"`
	SenderBalance   int64  `json:"sender_balance"`
	ReceiverID      string `json:"receiver_id"`
	ReceiverName    string `json:"receiver_name"`
	ReceiverBalance int64  `json:"receiver_balance"`
	Points          int64  `json:"points"`
}

// AdjustRequest is the admin add/deduct request. Points is signed.
type AdjustRequest struct {
	Points int64  `json:"points" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

type AdjustResponse struct {
	MemberID   string `json:"member_id"`
	Points     int64  `json:"points"`
	OldBalance int64  `json:"old_balance"`
	NewBalance int64  `json:"new_balance"`
	OldTier    string `json:"old_tier"`
	NewTier    string `json:"new_tier"`
}

type PurchaseRequest struct {
	Points           int64  `json:"points" validate:"required,gt=0"`
	PaymentMethod    string `json:"payment_method" validate:"omitempty,max=50"`
	PaymentReference string `json:"payment_reference" validate:"omitempty,max=100"`
	IdempotencyKey   string `json:"idempotency_key" validate:"omitempty,max=100"`
}

type PurchaseResponse struct {
	Purchase      *Purchase `json:"purchase"`
	Duplicate     bool      `json:"duplicate,omitempty"`
	ReferrerName  string    `json:"referrer_name,omitempty"`
	ReferrerBonus int64     `json:"referrer_bonus,omitempty"`
	RewardPending bool      `json:"reward_pending,omitempty"`
}

type WithdrawRequest struct {
	Points      int64  `json:"points" validate:"required,gt=0"`
	BankName    string `json:"bank_name" validate:"omitempty,max=100"`
	BankAccount string `json:"bank_account" validate:"omitempty,min=4,max=34"`
	AccountName string `json:"account_name" validate:"omitempty,max=100"`
}

type WithdrawResponse struct {
	Withdrawal    *Withdrawal `json:"withdrawal"`
	ReferrerName  string      `json:"referrer_name,omitempty"`
	ReferrerBonus int64       `json:"referrer_bonus,omitempty"`
	RewardPending bool        `json:"reward_pending,omitempty"`
}

type SetRecordStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing completed rejected"`
}
