//go:build !integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"exam-access/internal/domain"
)

func TestGetExecutor(t *testing.T) {
	if _, err := getExecutor(nil, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("nil pool and nil tx: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := getExecutor(nil, "not-a-handle"); !errors.Is(err, domain.ErrInvalidExecContext) {
		t.Errorf("unknown handle: expected ErrInvalidExecContext, got %v", err)
	}
	if inTx(nil) {
		t.Error("nil handle is not a transaction")
	}
}

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domain.ErrAlreadyExists},
		{"fk violation", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23503"}), domain.ErrInvalidArgument},
		{"bad uuid text", &pgconn.PgError{Code: "22P02"}, domain.ErrInvalidArgument},
		{"context canceled", context.Canceled, context.Canceled},
		{"passthrough", domain.ErrInvalidExecContext, domain.ErrInvalidExecContext},
		{"other", errors.New("conn reset"), domain.ErrOperationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapErr(tc.in)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNullJSON(t *testing.T) {
	if nullJSON(nil) != nil {
		t.Error("empty payload must map to SQL NULL")
	}
	if v, ok := nullJSON([]byte(`{"a":1}`)).(string); !ok || v != `{"a":1}` {
		t.Errorf("unexpected value %v", v)
	}
}
