package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lib/pq"
)

func TestWriteErrorMapsStoreFailures(t *testing.T) {
	h := &Handler{}

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{&pq.Error{Code: "08006"}, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{fmt.Errorf("begin tx: %w", driver.ErrBadConn), http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{ErrInsufficientBalance, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{errors.New("broken invariant"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.writeError(rec, tc.err)

		if rec.Code != tc.wantStatus {
			t.Errorf("writeError(%v) status = %d, want %d", tc.err, rec.Code, tc.wantStatus)
		}
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Error.Code != tc.wantCode {
			t.Errorf("writeError(%v) code = %q, want %q", tc.err, body.Error.Code, tc.wantCode)
		}
	}
}
