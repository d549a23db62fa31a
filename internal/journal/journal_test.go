package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestOpen_CreatesOperationsTable(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	var name string
	err := j.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='operations'",
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "operations", name)
}

func TestOpen_WALMode(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	var mode string
	err := j.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(dbPath)
	require.NoError(t, err)
	id, err := j.Begin(KindExcision, "/work/shop", "billing")
	require.NoError(t, err)
	require.NoError(t, j.Close())

	// Second open migrates again over the existing schema and sees the
	// previously recorded operation.
	j, err = Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Get(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "billing", got.Module)
}

// =============================================================================
// Begin / Finish
// =============================================================================

func TestBegin_RecordsRunningOperation(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	j := newTestJournal(t, WithClock(testclock.NewClock(start)))

	id, err := j.Begin(KindExcision, "/work/shop", "billing")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := j.Get(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, KindExcision, got.Kind)
	assert.Equal(t, "/work/shop", got.Target)
	assert.Equal(t, "billing", got.Module)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Empty(t, got.Error)
	assert.Nil(t, got.FinishedAt)
	assert.True(t, got.StartedAt.Equal(start))
}

func TestBegin_ProvisionTargetsRepoURL(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	id, err := j.Begin(KindProvision, "https://github.com/acme/shop.git", "")
	require.NoError(t, err)

	got, err := j.Get(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, KindProvision, got.Kind)
	assert.Equal(t, "https://github.com/acme/shop.git", got.Target)
	assert.Empty(t, got.Module)
}

func TestFinish_Success(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(start)
	j := newTestJournal(t, WithClock(clk))

	id, err := j.Begin(KindExcision, "/work/shop", "billing")
	require.NoError(t, err)

	clk.Advance(3 * time.Second)
	affected := []string{"src/app/app-routing.module.ts", "src/app/app.module.ts"}
	require.NoError(t, j.Finish(id, affected, nil))

	got, err := j.Get(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.Equal(t, affected, got.AffectedFiles)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(start.Add(3*time.Second)))
}

func TestFinish_Failure(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	id, err := j.Begin(KindExcision, "/work/shop", "billing")
	require.NoError(t, err)
	require.NoError(t, j.Finish(id, nil, errors.New("scan failed: boom")))

	got, err := j.Get(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "scan failed: boom", got.Error)
	assert.Empty(t, got.AffectedFiles)
	assert.NotNil(t, got.FinishedAt)
}

func TestFinish_UnknownID(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	err := j.Finish("no-such-operation", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no operation")
}

// =============================================================================
// Get / List
// =============================================================================

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	got, err := j.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestList_NewestFirst(t *testing.T) {
	t.Parallel()
	clk := testclock.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	j := newTestJournal(t, WithClock(clk))

	first, err := j.Begin(KindProvision, "/work/shop", "")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	second, err := j.Begin(KindExcision, "/work/shop", "billing")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	third, err := j.Begin(KindExcision, "/work/shop", "orders")
	require.NoError(t, err)

	entries, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, third, entries[0].ID)
	assert.Equal(t, second, entries[1].ID)
	assert.Equal(t, first, entries[2].ID)
}

func TestList_Limit(t *testing.T) {
	t.Parallel()
	clk := testclock.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	j := newTestJournal(t, WithClock(clk))

	for i := 0; i < 5; i++ {
		_, err := j.Begin(KindExcision, "/work/shop", "billing")
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	entries, err := j.List(2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestList_Empty(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	entries, err := j.List(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListByTarget(t *testing.T) {
	t.Parallel()
	clk := testclock.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	j := newTestJournal(t, WithClock(clk))

	_, err := j.Begin(KindExcision, "/work/shop", "billing")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = j.Begin(KindExcision, "/work/crm", "contacts")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = j.Begin(KindExcision, "/work/shop", "orders")
	require.NoError(t, err)

	entries, err := j.ListByTarget("/work/shop")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "orders", entries[0].Module)
	assert.Equal(t, "billing", entries[1].Module)
}
