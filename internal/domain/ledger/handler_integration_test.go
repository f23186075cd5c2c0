package ledger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/pointloop/loyalty-api/internal/domain/ledger"
	"github.com/pointloop/loyalty-api/internal/middleware"
	"github.com/pointloop/loyalty-api/internal/pkg/jwt"
	"github.com/pointloop/loyalty-api/internal/pkg/ratelimit"
)

func setupTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/1"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("bad redis url: %v", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil
	}
	return client
}

func numericPhone() string {
	return fmt.Sprintf("+7%010d", time.Now().UnixNano()%10000000000)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total int `json:"total"`
		Page  int `json:"page"`
	} `json:"meta"`
}

func performRequest(t *testing.T, r chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v (body: %s)", err, w.Body.String())
	}
	return resp
}

func TestLedgerEndpointsIntegration(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	engine, _ := newEngine(db)
	limiter := ratelimit.New(nil, time.Minute, nil, 60)
	h := ledger.NewHandler(engine, limiter)

	jwtSvc := jwt.NewService("ledger-integration-secret", time.Hour)
	adminToken, err := jwtSvc.GenerateAccessToken("admin-1", jwt.RoleAdmin)
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}

	authMiddleware := middleware.Auth(jwtSvc)
	adminMiddleware := func(next http.Handler) http.Handler {
		return authMiddleware(middleware.RequireAdmin()(next))
	}

	r := chi.NewRouter()
	r.Mount("/api/v1", h.Routes(adminMiddleware))

	var senderID, receiverID string

	t.Run("POST /register", func(t *testing.T) {
		w := performRequest(t, r, http.MethodPost, "/api/v1/register", map[string]interface{}{
			"name":  "Sender",
			"phone": numericPhone(),
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (body: %s)", w.Code, w.Body.String())
		}
		resp := decodeResponse(t, w)
		var data ledger.RegisterResponse
		var member struct {
			ID      string `json:"id"`
			Balance int64  `json:"balance"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatalf("decode data failed: %v", err)
		}
		raw, _ := json.Marshal(data.Member)
		if err := json.Unmarshal(raw, &member); err != nil {
			t.Fatalf("decode member failed: %v", err)
		}
		if member.Balance != 100 {
			t.Fatalf("expected initial balance 100, got %d", member.Balance)
		}
		senderID = member.ID
	})

	t.Run("POST /register validation", func(t *testing.T) {
		w := performRequest(t, r, http.MethodPost, "/api/v1/register", map[string]interface{}{
			"name":  "No Phone",
			"phone": "not-a-phone",
		})
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", w.Code)
		}
	})

	t.Run("POST /register second member", func(t *testing.T) {
		w := performRequest(t, r, http.MethodPost, "/api/v1/register", map[string]interface{}{
			"name":  "Receiver",
			"phone": numericPhone(),
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", w.Code)
		}
		resp := decodeResponse(t, w)
		var data struct {
			Member struct {
				ID string `json:"id"`
			} `json:"member"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatalf("decode data failed: %v", err)
		}
		receiverID = data.Member.ID
	})

	t.Run("POST /transfer", func(t *testing.T) {
		w := performRequest(t, r, http.MethodPost, "/api/v1/transfer", map[string]interface{}{
			"sender_id":   senderID,
			"receiver_id": receiverID,
			"points":      int64(40),
		})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (body: %s)", w.Code, w.Body.String())
		}
		resp := decodeResponse(t, w)
		var data ledger.TransferResponse
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatalf("decode data failed: %v", err)
		}
		if data.SenderBalance != 60 || data.ReceiverBalance != 140 {
			t.Fatalf("expected balances 60/140, got %d/%d", data.SenderBalance, data.ReceiverBalance)
		}
	})

	t.Run("POST /transfer insufficient", func(t *testing.T) {
		w := performRequest(t, r, http.MethodPost, "/api/v1/transfer", map[string]interface{}{
			"sender_id":   senderID,
			"receiver_id": receiverID,
			"points":      int64(10000),
		})
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", w.Code)
		}
		resp := decodeResponse(t, w)
		if resp.Error == nil || resp.Error.Code != "INSUFFICIENT_BALANCE" {
			t.Fatalf("expected INSUFFICIENT_BALANCE, got %+v", resp.Error)
		}
	})

	t.Run("POST /members/{id}/purchase", func(t *testing.T) {
		w := performRequest(t, r, http.MethodPost, fmt.Sprintf("/api/v1/members/%s/purchase", senderID), map[string]interface{}{
			"points": int64(500),
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (body: %s)", w.Code, w.Body.String())
		}
	})

	t.Run("GET /members/{id}/transactions", func(t *testing.T) {
		w := performRequest(t, r, http.MethodGet, fmt.Sprintf("/api/v1/members/%s/transactions?page=1&limit=10", senderID), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		resp := decodeResponse(t, w)
		if resp.Meta == nil || resp.Meta.Total != 3 {
			t.Fatalf("expected 3 transactions (register, transfer_out, purchase), got %+v", resp.Meta)
		}
	})

	t.Run("POST /members/{id}/withdraw", func(t *testing.T) {
		w := performRequest(t, r, http.MethodPost, fmt.Sprintf("/api/v1/members/%s/withdraw", senderID), map[string]interface{}{
			"points": int64(100),
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (body: %s)", w.Code, w.Body.String())
		}
	})

	t.Run("GET /members/{id}/purchases", func(t *testing.T) {
		w := performRequest(t, r, http.MethodGet, fmt.Sprintf("/api/v1/members/%s/purchases", senderID), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (body: %s)", w.Code, w.Body.String())
		}
		resp := decodeResponse(t, w)
		if resp.Meta == nil || resp.Meta.Total != 1 {
			t.Fatalf("expected 1 purchase record, got %+v", resp.Meta)
		}
		var records []ledger.Purchase
		if err := json.Unmarshal(resp.Data, &records); err != nil {
			t.Fatalf("decode data failed: %v", err)
		}
		if len(records) != 1 || records[0].Points != 500 {
			t.Fatalf("expected one 500-point purchase, got %+v", records)
		}
	})

	t.Run("GET /members/{id}/withdrawals", func(t *testing.T) {
		w := performRequest(t, r, http.MethodGet, fmt.Sprintf("/api/v1/members/%s/withdrawals", senderID), nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (body: %s)", w.Code, w.Body.String())
		}
		resp := decodeResponse(t, w)
		if resp.Meta == nil || resp.Meta.Total != 1 {
			t.Fatalf("expected 1 withdrawal record, got %+v", resp.Meta)
		}
		var records []ledger.Withdrawal
		if err := json.Unmarshal(resp.Data, &records); err != nil {
			t.Fatalf("decode data failed: %v", err)
		}
		if len(records) != 1 || records[0].Points != 100 {
			t.Fatalf("expected one 100-point withdrawal, got %+v", records)
		}
		if records[0].Status != ledger.RecordStatusPending {
			t.Fatalf("expected pending withdrawal, got %s", records[0].Status)
		}
	})

	t.Run("POST /members/{id}/adjust requires admin", func(t *testing.T) {
		w := performRequest(t, r, http.MethodPost, fmt.Sprintf("/api/v1/members/%s/adjust", senderID), map[string]interface{}{
			"points": int64(100),
		})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without a token, got %d", w.Code)
		}
	})

	t.Run("POST /members/{id}/adjust as admin", func(t *testing.T) {
		var buf bytes.Buffer
		json.NewEncoder(&buf).Encode(map[string]interface{}{
			"points": int64(-60),
			"reason": "manual correction",
		})
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/members/%s/adjust", senderID), &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+adminToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (body: %s)", w.Code, w.Body.String())
		}
		resp := decodeResponse(t, w)
		var data ledger.AdjustResponse
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			t.Fatalf("decode data failed: %v", err)
		}
		if data.NewBalance != data.OldBalance-60 {
			t.Fatalf("expected balance to drop by 60, got %d -> %d", data.OldBalance, data.NewBalance)
		}
	})
}

func TestLedgerRateLimit(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(db)

	engine, _ := newEngine(db)
	// A limiter that blocks everything after the first request.
	client := setupTestRedisClient(t)
	if client == nil {
		t.Skip("redis not available")
	}
	defer client.Close()

	limiter := ratelimit.New(client, time.Minute, map[string]int{"register": 1, "transactions": 1}, 60)
	h := ledger.NewHandler(engine, limiter)

	jwtSvc := jwt.NewService("ratelimit-secret", time.Hour)
	authMiddleware := middleware.Auth(jwtSvc)
	adminMiddleware := func(next http.Handler) http.Handler {
		return authMiddleware(middleware.RequireAdmin()(next))
	}

	r := chi.NewRouter()
	r.Mount("/api/v1", h.Routes(adminMiddleware))

	phone := numericPhone()
	body := map[string]interface{}{"name": "Limited", "phone": phone}

	w := performRequest(t, r, http.MethodPost, "/api/v1/register", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected first register to pass, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	var created struct {
		Member struct {
			ID string `json:"id"`
		} `json:"member"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatalf("decode data failed: %v", err)
	}

	w = performRequest(t, r, http.MethodPost, "/api/v1/register", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// Reads carry their own ceiling.
	path := fmt.Sprintf("/api/v1/members/%s/transactions", created.Member.ID)
	if w = performRequest(t, r, http.MethodGet, path, nil); w.Code != http.StatusOK {
		t.Fatalf("expected first history read to pass, got %d", w.Code)
	}
	if w = performRequest(t, r, http.MethodGet, path, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected throttled history read, got %d", w.Code)
	}
}
