package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "resumes_file_hash_key"}, want: true},
		{name: "pgx unique named", err: &pgconn.PgError{Code: "23505", ConstraintName: "resumes_file_hash_key"}, constraint: "resumes_file_hash_key", want: true},
		{name: "pgx other constraint", err: &pgconn.PgError{Code: "23505", ConstraintName: "resumes_pkey"}, constraint: "resumes_file_hash_key", want: false},
		{name: "pgx not null", err: &pgconn.PgError{Code: "23502"}, want: false},
		{name: "pq unique wrapped", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "resumes_file_hash_key"}), want: true},
		{name: "sqlite driver unique", err: fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}), want: true},
		{name: "sqlite driver not null", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, want: false},
		{name: "gorm translated", err: fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "sqlite message", err: errors.New("UNIQUE constraint failed: resumes.file_hash"), want: true},
		{name: "sqlite message named", err: errors.New("UNIQUE constraint failed: resumes.file_hash"), constraint: "resumes.file_hash", want: true},
		{name: "postgres message", err: errors.New(`ERROR: duplicate key value violates unique constraint "resumes_file_hash_key"`), want: true},
		{name: "unrelated", err: errors.New("connection refused"), want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("IsUniqueViolation() = %v, want %v", got, tc.want)
			}
		})
	}
}
