package database_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"

	"github.com/pointloop/loyalty-api/internal/pkg/database"
)

func TestIsUnavailable(t *testing.T) {
	retryable := []error{
		driver.ErrBadConn,
		sql.ErrConnDone,
		context.DeadlineExceeded,
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
		&pq.Error{Code: "08006"},
		&pq.Error{Code: "53300"},
		&pq.Error{Code: "57P01"},
		fmt.Errorf("begin tx: %w", driver.ErrBadConn),
	}
	for _, err := range retryable {
		if !database.IsUnavailable(err) {
			t.Errorf("IsUnavailable(%v) = false, want true", err)
		}
	}

	permanent := []error{
		nil,
		sql.ErrNoRows,
		errors.New("something else"),
		&pq.Error{Code: "23505"},
		&pq.Error{Code: "42P01"},
	}
	for _, err := range permanent {
		if database.IsUnavailable(err) {
			t.Errorf("IsUnavailable(%v) = true, want false", err)
		}
	}
}
