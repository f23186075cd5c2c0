package member

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pointloop/loyalty-api/internal/pkg/database"
	"github.com/pointloop/loyalty-api/internal/pkg/ratelimit"
	"github.com/pointloop/loyalty-api/internal/pkg/response"
	"github.com/pointloop/loyalty-api/internal/pkg/validator"
)

type Handler struct {
	directory *Directory
	limiter   *ratelimit.Limiter
}

func NewHandler(directory *Directory, limiter *ratelimit.Limiter) *Handler {
	return &Handler{directory: directory, limiter: limiter}
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

// Profile returns the member snapshot (cache path).
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "member id is required")
		return
	}
	if !h.allow(w, r, id, "profile") {
		return
	}

	snapshot, err := h.directory.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "member not found")
			return
		}
		writeStoreError(w, err)
		return
	}

	response.OK(w, snapshot)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	snapshot, err := h.directory.UpdateProfile(r.Context(), id, req.Name, req.Email, req.AvatarURL)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "member not found")
			return
		}
		writeStoreError(w, err)
		return
	}

	response.OK(w, snapshot)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	token, snapshot, err := h.directory.Login(r.Context(), req.LoginName, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(w, "invalid login name or password")
			return
		}
		writeStoreError(w, err)
		return
	}

	response.OK(w, LoginResponse{Token: token, Member: snapshot})
}

// SetStatus is the admin account-status endpoint.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	if err := h.directory.SetStatus(r.Context(), id, Status(req.Status)); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "member not found")
		case errors.Is(err, ErrInvalidStatus):
			response.BadRequest(w, "invalid account status")
		default:
			writeStoreError(w, err)
		}
		return
	}

	response.OK(w, map[string]string{"id": id, "status": req.Status})
}

// Routes mounts the member endpoints. adminMiddleware guards status changes.
func (h *Handler) Routes(adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Get("/{id}", h.Profile)
	r.Patch("/{id}", h.UpdateProfile)
	r.With(adminMiddleware).Patch("/{id}/status", h.SetStatus)
	return r
}
