package store

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow implements pgx.Row with a custom scan function.
type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

// fakeQuerier implements Querier for unit testing.
type fakeQuerier struct {
	execSQL      []string
	execArgs     [][]any
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execSQL = append(q.execSQL, sql)
	q.execArgs = append(q.execArgs, args)
	return pgconn.CommandTag{}, nil
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if q.queryRowFunc != nil {
		return q.queryRowFunc(ctx, sql, args...)
	}
	return &fakeRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
}

func TestCredentialsLinkedTokenMissing(t *testing.T) {
	t.Parallel()

	creds := NewCredentials(nil, &fakeQuerier{})

	token, ok, err := creds.LinkedToken(context.Background(), 42)
	if err != nil {
		t.Fatalf("expected a missing row to not be an error, got %v", err)
	}
	if ok || token != "" {
		t.Fatalf("expected no token, got %q", token)
	}
}

func TestCredentialsLinkedToken(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	db := &fakeQuerier{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			gotArgs = args
			return &fakeRow{scanFunc: func(dest ...any) error {
				*dest[0].(*string) = "secret-token"
				return nil
			}}
		},
	}
	creds := NewCredentials(nil, db)

	token, ok, err := creds.LinkedToken(context.Background(), 42)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !ok || token != "secret-token" {
		t.Fatalf("expected the stored token, got %q (ok=%v)", token, ok)
	}
	if len(gotArgs) != 1 || gotArgs[0] != int64(42) {
		t.Fatalf("expected the user id as query arg, got %v", gotArgs)
	}
}

func TestCredentialsSetLinkedTokenUpserts(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{}
	creds := NewCredentials(nil, db)

	if err := creds.SetLinkedToken(context.Background(), 42, "new-token"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(db.execSQL) != 1 {
		t.Fatalf("expected one statement, got %d", len(db.execSQL))
	}
	if !strings.Contains(db.execSQL[0], "ON CONFLICT (user_id)") {
		t.Fatalf("expected an upsert, got %q", db.execSQL[0])
	}
	if db.execArgs[0][0] != int64(42) || db.execArgs[0][1] != "new-token" {
		t.Fatalf("unexpected args: %v", db.execArgs[0])
	}
}

func TestGroupConfigFlagUnset(t *testing.T) {
	t.Parallel()

	groups := NewGroupConfig(nil, &fakeQuerier{})

	value, ok, err := groups.Flag(context.Background(), -100, GroupAddKey)
	if err != nil {
		t.Fatalf("expected a missing flag to not be an error, got %v", err)
	}
	if ok || value {
		t.Fatalf("expected an unset flag, got value=%v ok=%v", value, ok)
	}
}

func TestGroupConfigFlag(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFunc: func(dest ...any) error {
				*dest[0].(*bool) = true
				return nil
			}}
		},
	}
	groups := NewGroupConfig(nil, db)

	value, ok, err := groups.Flag(context.Background(), -100, GroupAddKey)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !ok || !value {
		t.Fatalf("expected an enabled flag, got value=%v ok=%v", value, ok)
	}
}

func TestGroupConfigSetFlagUpserts(t *testing.T) {
	t.Parallel()

	db := &fakeQuerier{}
	groups := NewGroupConfig(nil, db)

	if err := groups.SetFlag(context.Background(), -100, GroupAddKey, true); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(db.execSQL) != 1 {
		t.Fatalf("expected one statement, got %d", len(db.execSQL))
	}
	if !strings.Contains(db.execSQL[0], "ON CONFLICT (chat_id, name)") {
		t.Fatalf("expected an upsert, got %q", db.execSQL[0])
	}
}
