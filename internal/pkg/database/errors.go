package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
)

// IsUnavailable reports whether err is a connection or timeout class store
// failure that a client may retry, as opposed to a semantic failure that will
// repeat. Handlers map these to 503 instead of 500.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08: connection exception, 53: insufficient resources,
		// 57: operator intervention (shutdown in progress).
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return true
		}
	}
	return false
}
