package referral

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pointloop/loyalty-api/internal/pkg/database"
	"github.com/pointloop/loyalty-api/internal/pkg/ratelimit"
	"github.com/pointloop/loyalty-api/internal/pkg/response"
)

type Handler struct {
	svc     *Service
	limiter *ratelimit.Limiter
}

func NewHandler(svc *Service, limiter *ratelimit.Limiter) *Handler {
	return &Handler{svc: svc, limiter: limiter}
}

func (h *Handler) allow(w http.ResponseWriter, r *http.Request, identity, action string) bool {
	res := h.limiter.Allow(r.Context(), identity, action)
	if !res.Allowed {
		response.TooManyRequests(w, int(res.RetryAfter.Seconds()))
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if database.IsUnavailable(err) {
		response.StoreUnavailable(w)
		return
	}
	response.InternalError(w)
}

// Verify checks a referral code before registration.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		response.BadRequest(w, "code query parameter is required")
		return
	}

	referrer, err := h.svc.Verify(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			response.OK(w, map[string]interface{}{"valid": false})
			return
		}
		writeStoreError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"valid":         true,
		"referrer_name": referrer.Name,
	})
}

// ListByReferrer returns the member's recruits and accumulated rewards.
func (h *Handler) ListByReferrer(w http.ResponseWriter, r *http.Request) {
	referrerID := chi.URLParam(r, "id")
	if !h.allow(w, r, referrerID, "referrals") {
		return
	}

	rels, err := h.svc.ListByReferrer(r.Context(), referrerID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var total int64
	items := make([]map[string]interface{}, 0, len(rels))
	for _, rel := range rels {
		total += rel.Reward
		items = append(items, map[string]interface{}{
			"referee_id":   rel.RefereeID,
			"referee_name": rel.RefereeName,
			"reward":       rel.Reward,
			"status":       rel.Status,
			"created_at":   rel.CreatedAt,
		})
	}

	response.OK(w, map[string]interface{}{
		"count":        len(rels),
		"total_reward": total,
		"referrals":    items,
	})
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/verify", h.Verify)
	r.Get("/{id}", h.ListByReferrer)
	return r
}
