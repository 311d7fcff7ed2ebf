package postgres

import (
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Failure reasons. Errors returned by this module wrap exactly one of these.
var (
	ErrInvalidParams = errors.New("invalid connection parameters")
	ErrConnect       = errors.New("connection failed")
	ErrAuth          = errors.New("authentication failed")
	ErrTableNotFound = errors.New("table not found")
	ErrQuery         = errors.New("query failed")
)

var reasons = []error{ErrInvalidParams, ErrConnect, ErrAuth, ErrTableNotFound, ErrQuery}

// Classify wraps err with the failure reason matching its SQLSTATE or transport
// error. Errors that already carry a reason are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, reason := range reasons {
		if errors.Is(err, reason) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", reasonFor(err), err)
}

// Reason returns the failure reason carried by err, or nil if it has none.
func Reason(err error) error {
	for _, reason := range reasons {
		if errors.Is(err, reason) {
			return reason
		}
	}
	return nil
}

func reasonFor(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return reasonForCode(pgErr.Code)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return reasonForCode(string(pqErr.Code))
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return ErrConnect
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnect
	}
	return ErrQuery
}

func reasonForCode(code string) error {
	switch code {
	case "28P01", "28000":
		return ErrAuth
	case "42P01":
		return ErrTableNotFound
	case "3D000":
		return ErrConnect
	}
	if len(code) >= 2 && code[:2] == "08" {
		return ErrConnect
	}
	return ErrQuery
}
