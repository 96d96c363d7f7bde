package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"regassist/pkg/platform/sentinel"
)

func TestUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad connection", driver.ErrBadConn, true},
		{"connection done", fmt.Errorf("begin transaction: %w", sql.ErrConnDone), true},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"unique violation", &pgconn.PgError{Code: uniqueViolation}, false},
		{"conflict", sentinel.ErrConflict, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := unavailable(tt.err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.want, errors.Is(err, sentinel.ErrUnavailable))
		})
	}

	assert.NoError(t, unavailable(nil))
}
