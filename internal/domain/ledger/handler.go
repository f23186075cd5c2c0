package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pointloop/loyalty-api/internal/domain/member"
	"github.com/pointloop/loyalty-api/internal/domain/referral"
	"github.com/pointloop/loyalty-api/internal/pkg/database"
	"github.com/pointloop/loyalty-api/internal/pkg/ratelimit"
	"github.com/pointloop/loyalty-api/internal/pkg/response"
	"github.com/pointloop/loyalty-api/internal/pkg/validator"
)

type Handler struct {
	engine  *Engine
	limiter *ratelimit.Limiter
}

func NewHandler(engine *Engine, limiter *ratelimit.Limiter) *Handler {
	return &Handler{engine: engine, limiter: limiter}
}

func (h *Handler) allow(w http.ResponseWriter, r *http.Request, identity, action string) bool {
	res := h.limiter.Allow(r.Context(), identity, action)
	if !res.Allowed {
		response.TooManyRequests(w, int(res.RetryAfter.Seconds()))
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if !h.allow(w, r, req.Phone, "register") {
		return
	}

	identity := req.Identity
	if identity == "" {
		identity = uuid.NewString()
	}

	result, err := h.engine.Register(r.Context(), member.NewMemberParams{
		ID:        identity,
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		AvatarURL: req.AvatarURL,
		LoginName: req.LoginName,
		Password:  req.Password,
	}, req.ReferralCode)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.Created(w, RegisterResponse{
		Member:       result.Member,
		InitialGrant: result.InitialGrant,
		ReferrerName: result.ReferrerName,
		Referred:     result.Bound,
	})
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if !h.allow(w, r, req.SenderID, "transfer") {
		return
	}

	out, err := h.engine.Transfer(r.Context(), req.SenderID, req.ReceiverID, req.Points, req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, TransferResponse{
		SenderID:        req.SenderID,
		SenderName:      out.SenderName,
		SenderBalance:   out.SenderBalance,
		ReceiverID:      req.ReceiverID,
		ReceiverName:    out.ReceiverName,
		ReceiverBalance: out.ReceiverBalance,
		Points:          req.Points,
	})
}

// Adjust is the admin add/deduct endpoint.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")

	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if !h.allow(w, r, memberID, "adjust") {
		return
	}

	out, err := h.engine.AdminAdjust(r.Context(), memberID, req.Points, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.OK(w, AdjustResponse{
		MemberID:   memberID,
		Points:     req.Points,
		OldBalance: out.OldBalance,
		NewBalance: out.NewBalance,
		OldTier:    out.OldTier,
		NewTier:    out.NewTier,
	})
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")

	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if !h.allow(w, r, memberID, "purchase") {
		return
	}

	result, err := h.engine.Purchase(r.Context(), memberID, req.Points, PurchaseMeta{
		Method:         req.PaymentMethod,
		Reference:      req.PaymentReference,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := PurchaseResponse{
		Purchase:      result.Purchase,
		Duplicate:     result.Duplicate,
		RewardPending: result.RewardPending,
	}
	if result.Reward != nil && result.Reward.Paid {
		resp.ReferrerName = result.Reward.ReferrerName
		resp.ReferrerBonus = result.Reward.Reward
	}
	if result.Duplicate {
		response.OK(w, resp)
		return
	}
	response.Created(w, resp)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	if !h.allow(w, r, memberID, "withdraw") {
		return
	}

	result, err := h.engine.Withdraw(r.Context(), memberID, req.Points, BankMeta{
		BankName:    req.BankName,
		BankAccount: req.BankAccount,
		AccountName: req.AccountName,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := WithdrawResponse{
		Withdrawal:    result.Withdrawal,
		RewardPending: result.RewardPending,
	}
	if result.Reward != nil && result.Reward.Paid {
		resp.ReferrerName = result.Reward.ReferrerName
		resp.ReferrerBonus = result.Reward.Reward
	}
	response.Created(w, resp)
}

func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func pageMeta(total, page, limit int) response.Meta {
	pages := (total + limit - 1) / limit
	return response.Meta{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// Transactions returns one page of a member's history.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")
	if !h.allow(w, r, memberID, "transactions") {
		return
	}
	page, limit := pageParams(r)

	txs, total, err := h.engine.Transactions(r.Context(), memberID, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.WithMeta(w, txs, pageMeta(total, page, limit))
}

// Purchases returns one page of a member's purchase records.
func (h *Handler) Purchases(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")
	if !h.allow(w, r, memberID, "purchases") {
		return
	}
	page, limit := pageParams(r)

	records, total, err := h.engine.Purchases(r.Context(), memberID, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.WithMeta(w, records, pageMeta(total, page, limit))
}

// Withdrawals returns one page of a member's withdrawal records.
func (h *Handler) Withdrawals(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")
	if !h.allow(w, r, memberID, "withdrawals") {
		return
	}
	page, limit := pageParams(r)

	records, total, err := h.engine.Withdrawals(r.Context(), memberID, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.WithMeta(w, records, pageMeta(total, page, limit))
}

// SetWithdrawalStatus is the admin payout workflow endpoint.
func (h *Handler) SetWithdrawalStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid withdrawal id")
		return
	}

	var req SetRecordStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	wd, err := h.engine.SetWithdrawalStatus(r.Context(), id, RecordStatus(req.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, wd)
}

// SetPurchaseStatus is the admin purchase review endpoint.
func (h *Handler) SetPurchaseStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid purchase id")
		return
	}

	var req SetRecordStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	p, err := h.engine.SetPurchaseStatus(r.Context(), id, RecordStatus(req.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, p)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, member.ErrDuplicateIdentity):
		response.Conflict(w, "ALREADY_REGISTERED", "identity is already registered")
	case errors.Is(err, member.ErrDuplicatePhone):
		response.Conflict(w, "PHONE_IN_USE", "phone number is already registered")
	case errors.Is(err, member.ErrDuplicateLoginName):
		response.Conflict(w, "LOGIN_NAME_IN_USE", "login name is already taken")
	case errors.Is(err, referral.ErrInvalidCode):
		response.UnprocessableEntity(w, "INVALID_REFERRAL_CODE", "referral code does not exist")
	case errors.Is(err, referral.ErrSelfReferral):
		response.UnprocessableEntity(w, "SELF_REFERRAL", "cannot use your own referral code")
	case errors.Is(err, referral.ErrAlreadyBound):
		response.Conflict(w, "ALREADY_REFERRED", "member already has a referrer")
	case errors.Is(err, ErrSenderNotFound):
		response.NotFound(w, "sender not found")
	case errors.Is(err, ErrReceiverNotFound):
		response.NotFound(w, "receiver not found")
	case errors.Is(err, ErrMemberNotFound):
		response.NotFound(w, "member not found")
	case errors.Is(err, ErrRecordNotFound):
		response.NotFound(w, "record not found")
	case errors.Is(err, ErrInsufficientBalance):
		response.UnprocessableEntity(w, "INSUFFICIENT_BALANCE", "not enough points")
	case errors.Is(err, ErrInvalidAmount):
		response.UnprocessableEntity(w, "INVALID_AMOUNT", "amount is below the allowed minimum")
	case errors.Is(err, ErrSelfTransfer):
		response.UnprocessableEntity(w, "SELF_TRANSFER", "cannot transfer points to yourself")
	case errors.Is(err, ErrNegativeBalance):
		response.UnprocessableEntity(w, "NEGATIVE_BALANCE", "adjustment would make the balance negative")
	case errors.Is(err, ErrBelowMinimumWithdrawal):
		response.UnprocessableEntity(w, "BELOW_MINIMUM_WITHDRAWAL", "withdrawal is below the minimum")
	case errors.Is(err, ErrReferenceConflict):
		response.Conflict(w, "REFERENCE_CONFLICT", "idempotency key was already used with different points")
	case errors.Is(err, ErrInvalidTransition):
		response.Conflict(w, "INVALID_STATUS_TRANSITION", "status transition is not allowed")
	case database.IsUnavailable(err):
		response.StoreUnavailable(w)
	default:
		response.InternalError(w)
	}
}

// Routes mounts the ledger endpoints. adminMiddleware guards adjustments and
// back-office status changes.
func (h *Handler) Routes(adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/transfer", h.Transfer)
	r.Get("/members/{id}/transactions", h.Transactions)
	r.Get("/members/{id}/purchases", h.Purchases)
	r.Get("/members/{id}/withdrawals", h.Withdrawals)
	r.Post("/members/{id}/purchase", h.Purchase)
	r.Post("/members/{id}/withdraw", h.Withdraw)
	r.With(adminMiddleware).Post("/members/{id}/adjust", h.Adjust)
	r.With(adminMiddleware).Patch("/withdrawals/{id}/status", h.SetWithdrawalStatus)
	r.With(adminMiddleware).Patch("/purchases/{id}/status", h.SetPurchaseStatus)
	return r
}
