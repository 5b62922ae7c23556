package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTokenCollision(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "sqlite unique violation on token",
			err:  errors.New("constraint failed: UNIQUE constraint failed: invites.token (2067)"),
			want: true,
		},
		{
			name: "sqlite unique violation on another column",
			err:  errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"),
			want: false,
		},
		{
			name: "postgres unique violation on token constraint",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "invites_token_key"},
			want: true,
		},
		{
			name: "wrapped postgres unique violation",
			err:  fmt.Errorf("insert invite: %w", &pgconn.PgError{Code: "23505", ConstraintName: "invites_token_key"}),
			want: true,
		},
		{
			name: "postgres unique violation on another constraint",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "invites_email_key"},
			want: false,
		},
		{
			name: "postgres foreign key violation",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "invites_token_key"},
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("connection reset"),
			want: false,
		},
	}
	for _, c := range cases {
		if got := isTokenCollision(c.err); got != c.want {
			t.Errorf("%s: isTokenCollision = %v, want %v", c.name, got, c.want)
		}
	}
}
