package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/meshctl/internal/schema"
	"github.com/roach88/meshctl/internal/testutil"
)

func testOpen(t *testing.T, path string) *Conn {
	t.Helper()
	sch, err := schema.Load()
	require.NoError(t, err)
	conn, err := Open(path, sch,
		WithIDGenerator(testutil.NewSequentialGenerator()),
		WithPollInterval(5*time.Millisecond),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "mesh.db")
}

func TestOpen_FreshStore(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()

	assert.EqualValues(t, 0, conn.CurrentVersion())

	conn.Advance(ctx)
	require.True(t, conn.IsAlive())
	assert.EqualValues(t, 1, conn.CurrentVersion())
	assert.Empty(t, conn.Rows("switch"))
}

func TestTxn_CommitThenAdvance(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	swID := conn.RowID()
	portID := conn.RowID()

	txn := conn.Begin(false)
	txn.Insert("switch", swID, Row{
		"name":  "sw0",
		"ports": []uuid.UUID{portID},
	})
	txn.Insert("port", portID, Row{
		"name":      "p1",
		"tag":       int64(42),
		"up":        true,
		"addresses": []string{"00:00:00:00:00:01"},
		"options":   map[string]string{"mtu": "9000"},
	})
	require.Equal(t, OutcomeSuccess, txn.Commit(ctx))

	conn.Advance(ctx)
	assert.EqualValues(t, 2, conn.CurrentVersion())

	sw, ok := conn.Row("switch", swID)
	require.True(t, ok)
	assert.Equal(t, "sw0", sw.String("name"))
	assert.Equal(t, []uuid.UUID{portID}, sw.Refs("ports"))

	p, ok := conn.Row("port", portID)
	require.True(t, ok)
	tag, tagSet := p.Int("tag")
	assert.True(t, tagSet)
	assert.EqualValues(t, 42, tag)
	up, upSet := p.Bool("up")
	assert.True(t, upSet)
	assert.True(t, up)
	assert.Equal(t, []string{"00:00:00:00:00:01"}, p.Strings("addresses"))
	assert.Equal(t, map[string]string{"mtu": "9000"}, p.Map("options"))
}

func TestTxn_EmptyCommitIsUnchanged(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	txn := conn.Begin(false)
	assert.Equal(t, OutcomeUnchanged, txn.Commit(ctx))

	conn.Advance(ctx)
	assert.EqualValues(t, 1, conn.CurrentVersion())
}

func TestTxn_StaleSnapshotReportsTryAgain(t *testing.T) {
	path := testDB(t)
	a := testOpen(t, path)
	b := testOpen(t, path)
	ctx := context.Background()

	a.Advance(ctx)
	b.Advance(ctx)

	idA := uuid.MustParse("11111111-0000-4000-8000-000000000001")
	idB := uuid.MustParse("22222222-0000-4000-8000-000000000001")

	txnA := a.Begin(false)
	txnA.Insert("switch", idA, Row{"name": "from-a"})
	require.Equal(t, OutcomeSuccess, txnA.Commit(ctx))

	// b still mirrors version 1; its commit must not clobber a's write.
	txnB := b.Begin(false)
	txnB.Insert("switch", idB, Row{"name": "from-b"})
	assert.Equal(t, OutcomeTryAgain, txnB.Commit(ctx))

	b.Advance(ctx)
	retry := b.Begin(false)
	retry.Insert("switch", idB, Row{"name": "from-b"})
	assert.Equal(t, OutcomeSuccess, retry.Commit(ctx))

	b.Advance(ctx)
	names := make([]string, 0)
	for _, row := range b.Rows("switch") {
		names = append(names, row.String("name"))
	}
	assert.ElementsMatch(t, []string{"from-a", "from-b"}, names)
}

func TestTxn_DryRunPersistsNothing(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	txn := conn.Begin(true)
	txn.Insert("switch", conn.RowID(), Row{"name": "sw0"})
	assert.Equal(t, OutcomeSuccess, txn.Commit(ctx))

	conn.Advance(ctx)
	assert.EqualValues(t, 1, conn.CurrentVersion())
	assert.Empty(t, conn.Rows("switch"))
}

func TestTxn_UnreachableRowsAreCollected(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	swID := conn.RowID()
	portID := conn.RowID()
	txn := conn.Begin(false)
	txn.Insert("switch", swID, Row{"name": "sw0", "ports": []uuid.UUID{portID}})
	txn.Insert("port", portID, Row{"name": "p1"})
	require.Equal(t, OutcomeSuccess, txn.Commit(ctx))

	// Deleting the switch leaves the port unreachable.
	del := conn.Begin(false)
	del.Delete("switch", swID)
	require.Equal(t, OutcomeSuccess, del.Commit(ctx))

	conn.Advance(ctx)
	assert.Empty(t, conn.Rows("switch"))
	assert.Empty(t, conn.Rows("port"))
}

func TestTxn_OrphanInsertIsEffectFree(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	txn := conn.Begin(false)
	txn.Insert("port", conn.RowID(), Row{"name": "orphan"})
	assert.Equal(t, OutcomeUnchanged, txn.Commit(ctx))

	conn.Advance(ctx)
	assert.EqualValues(t, 1, conn.CurrentVersion())
	assert.Empty(t, conn.Rows("port"))
}

func TestTxn_DanglingRefIsPruned(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	swID := conn.RowID()
	txn := conn.Begin(false)
	txn.Insert("switch", swID, Row{"name": "sw0", "ports": []uuid.UUID{conn.RowID()}})
	require.Equal(t, OutcomeSuccess, txn.Commit(ctx))

	conn.Advance(ctx)
	sw, ok := conn.Row("switch", swID)
	require.True(t, ok)
	assert.Empty(t, sw.Refs("ports"))
}

func TestTxn_UpdateMissingRowFails(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	txn := conn.Begin(false)
	txn.Update("switch", conn.RowID(), "name", "ghost")
	assert.Equal(t, OutcomeError, txn.Commit(ctx))
	assert.Contains(t, txn.ErrorMessage(), "missing")
}

func TestTxn_AbortAndDoubleCommit(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	txn := conn.Begin(false)
	txn.Insert("switch", conn.RowID(), Row{"name": "sw0"})
	txn.Abort()
	assert.Equal(t, OutcomeAborted, txn.Commit(ctx))

	committed := conn.Begin(false)
	committed.Insert("switch", conn.RowID(), Row{"name": "sw1"})
	require.Equal(t, OutcomeSuccess, committed.Commit(ctx))
	assert.Equal(t, OutcomeUncommitted, committed.Commit(ctx))
}

func TestTxn_OverlayShowsQueuedOperations(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	swID := conn.RowID()
	txn := conn.Begin(false).(*sqliteTxn)
	txn.Insert("switch", swID, Row{"name": "sw0"})

	row, ok := txn.Row("switch", swID)
	require.True(t, ok)
	assert.Equal(t, "sw0", row.String("name"))
	// The mirror itself stays untouched.
	_, inMirror := conn.Row("switch", swID)
	assert.False(t, inMirror)

	txn.Update("switch", swID, "name", "renamed")
	row, _ = txn.Row("switch", swID)
	assert.Equal(t, "renamed", row.String("name"))

	txn.Delete("switch", swID)
	_, ok = txn.Row("switch", swID)
	assert.False(t, ok)
}

func TestWait_ReturnsOnRemoteCommit(t *testing.T) {
	path := testDB(t)
	a := testOpen(t, path)
	b := testOpen(t, path)
	ctx := context.Background()

	a.Advance(ctx)
	b.Advance(ctx)

	done := make(chan error, 1)
	go func() { done <- a.Wait(ctx) }()

	time.Sleep(20 * time.Millisecond)
	txn := b.Begin(false)
	txn.Insert("switch", b.RowID(), Row{"name": "sw0"})
	require.Equal(t, OutcomeSuccess, txn.Commit(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not observe the remote commit")
	}
}

func TestWait_HonorsContextDeadline(t *testing.T) {
	conn := testOpen(t, testDB(t))
	ctx := context.Background()
	conn.Advance(ctx)

	deadline, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err := conn.Wait(deadline)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
