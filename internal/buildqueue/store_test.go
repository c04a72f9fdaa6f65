package buildqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulcbetts/peasant/internal/blobcache"
)

func newTestStore(t *testing.T) *RecordStore {
	t.Helper()
	cache, err := blobcache.NewFSCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return NewRecordStore(cache)
}

func queuedRecord(id uint64) *BuildRecord {
	return &BuildRecord{
		ID:             id,
		RepoURL:        "https://github.com/owner/repo",
		Commit:         "0123456789abcdef0123456789abcdef01234567",
		BuildScriptURL: "https://github.com/owner/repo/blob/master/build.sh",
	}
}

func TestQueuedRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutQueued(ctx, queuedRecord(5)))

	rec, err := store.GetQueued(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.ID)
	assert.Nil(t, rec.ExitCode)
	assert.False(t, rec.Succeeded())

	_, err = store.GetResult(ctx, 5)
	assert.True(t, errors.Is(err, ErrNoRecord))
}

func TestResultRequiresExitCode(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.PutResult(context.Background(), queuedRecord(1)))
}

func TestTwoPhaseTransition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := queuedRecord(9)
	require.NoError(t, store.PutQueued(ctx, rec))

	code := 0
	rec.ExitCode = &code
	rec.Output = "done\n"
	require.NoError(t, store.PutResult(ctx, rec))
	require.NoError(t, store.InvalidateQueued(ctx, rec.ID))

	_, err := store.GetQueued(ctx, 9)
	assert.True(t, errors.Is(err, ErrNoRecord))

	got, err := store.GetResult(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "done\n", got.Output)
	assert.True(t, got.Succeeded())

	// Invalidate is idempotent across crash-retry.
	assert.NoError(t, store.InvalidateQueued(ctx, rec.ID))
}

func TestListQueuedAscending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []uint64{12, 2, 7} {
		require.NoError(t, store.PutQueued(ctx, queuedRecord(id)))
	}

	records, err := store.ListQueued(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(2), records[0].ID)
	assert.Equal(t, uint64(7), records[1].ID)
	assert.Equal(t, uint64(12), records[2].ID)
}

func TestMaxIDSpansBothPrefixes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	max, err := store.MaxID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), max)

	require.NoError(t, store.PutQueued(ctx, queuedRecord(3)))

	done := queuedRecord(11)
	code := 1
	done.ExitCode = &code
	require.NoError(t, store.PutResult(ctx, done))

	max, err = store.MaxID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), max)
}

func TestExitCodeSerializationDiscriminatesAbsence(t *testing.T) {
	rec := queuedRecord(4)
	data, err := encodeRecord(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "exit_code")

	code := 0
	rec.ExitCode = &code
	data, err = encodeRecord(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exit_code":0`)

	decoded, err := decodeRecord(data)
	require.NoError(t, err)
	require.NotNil(t, decoded.ExitCode)
	assert.True(t, decoded.Succeeded())
}
