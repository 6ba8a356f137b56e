package users

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/mailtoken/internal/common"
)

// classify tags a driver error with its class from common, keeping the
// original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		// class 23: integrity constraint violation
		case strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("db error: %w: %w", common.ErrConstraintViolation, err)
		// class 08: connection exception; 57P0x: server shutting down
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P0"):
			return fmt.Errorf("db error: %w: %w", common.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("db error: %w", err)
	}

	if isUnavailable(err) {
		return fmt.Errorf("db error: %w: %w", common.ErrStoreUnavailable, err)
	}

	return fmt.Errorf("db error: %w", err)
}

func isUnavailable(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		pgconn.Timeout(err)
}
