package sync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-bas/open-bas/internal/db/gen"
)

type stubLockManager struct {
	lock Lock
	ok   bool
}

func (m stubLockManager) TryAcquire(context.Context, LockScope) (Lock, bool, error) {
	if !m.ok {
		return nil, false, nil
	}
	return m.lock, true, nil
}

func (m stubLockManager) Acquire(context.Context, LockScope) (Lock, error) {
	return m.lock, nil
}

type fakeDBTX struct {
	execCount int
	lastSQL   string
	execErr   error
}

func (db *fakeDBTX) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	db.execCount++
	db.lastSQL = sql
	return pgconn.CommandTag{}, db.execErr
}

func (db *fakeDBTX) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	panic("Query not expected")
}

func (db *fakeDBTX) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	panic("QueryRow not expected")
}

func TestReconcileSignalRunner_UsesAdvisoryLockConnectionForNotify(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("notify sentinel")
	db := &fakeDBTX{execErr: sentinel}
	lock := &advisoryLock{
		q:         gen.New(db),
		scope: ManagerScope,
	}

	runner := NewReconcileSignalRunner(&pgxpool.Pool{}, stubLockManager{lock: lock, ok: true})
	err := runner.RunOnce(context.Background())

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected notify error, got %v", err)
	}
	if db.execCount != 1 {
		t.Fatalf("expected 1 notify exec, got %d", db.execCount)
	}
}

func TestNotifyQueries_ReusesAdvisoryConnection(t *testing.T) {
	t.Parallel()

	db := &fakeDBTX{}
	lock := &advisoryLock{
		q:         gen.New(db),
		scope: ManagerScope,
	}
	q := notifyQueries(&pgxpool.Pool{}, lock)
	if err := q.NotifyReconcileRequested(context.Background()); err != nil {
		t.Fatalf("NotifyReconcileRequested() error = %v", err)
	}
	if db.execCount != 1 {
		t.Fatalf("expected 1 notify exec, got %d", db.execCount)
	}
	if !strings.Contains(db.lastSQL, "pg_notify('"+ReconcileNotifyChannel+"'") {
		t.Fatalf("expected pg_notify SQL, got %q", db.lastSQL)
	}
}

func TestReconcileSignalRunner_AlreadyRunning(t *testing.T) {
	t.Parallel()

	runner := NewReconcileSignalRunner(&pgxpool.Pool{}, stubLockManager{ok: false})
	if err := runner.RunOnce(context.Background()); !errors.Is(err, ErrReconcileAlreadyRunning) {
		t.Fatalf("RunOnce() error = %v, want ErrReconcileAlreadyRunning", err)
	}
}
