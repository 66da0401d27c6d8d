package bufferpool

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pesadb/storage_engine/filemanager"
)

func newTestPool(t *testing.T, capacity int) (*BufferPool, *filemanager.FileManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	fm, err := filemanager.New(filepath.Join(t.TempDir(), "pool.db"), logger)
	require.NoError(t, err)
	require.NoError(t, fm.CreateDatabase())
	return New(capacity, fm, logger), fm
}

func allocPages(t *testing.T, fm *filemanager.FileManager, n int) []uint32 {
	t.Helper()
	ids := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		p, err := fm.AllocatePage()
		require.NoError(t, err)
		require.NoError(t, fm.WritePageWithWAL(p))
		ids = append(ids, p.ID)
	}
	return ids
}

func TestHitAndMissCounters(t *testing.T) {
	bp, fm := newTestPool(t, 4)
	ids := allocPages(t, fm, 2)

	_, err := bp.GetPage(ids[0])
	require.NoError(t, err)
	_, err = bp.GetPage(ids[0])
	require.NoError(t, err)
	_, err = bp.GetPage(ids[1])
	require.NoError(t, err)

	stats := bp.GetStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.InDelta(t, 1.0/3.0, stats.HitRate, 1e-9)
}

func TestLRUEviction(t *testing.T) {
	bp, fm := newTestPool(t, 2)
	ids := allocPages(t, fm, 3)

	_, err := bp.GetPage(ids[0])
	require.NoError(t, err)
	_, err = bp.GetPage(ids[1])
	require.NoError(t, err)

	// re-access ids[0] so ids[1] becomes the LRU victim
	_, err = bp.GetPage(ids[0])
	require.NoError(t, err)

	_, err = bp.GetPage(ids[2])
	require.NoError(t, err)

	assert.True(t, bp.Contains(ids[0]))
	assert.False(t, bp.Contains(ids[1]))
	assert.True(t, bp.Contains(ids[2]))
	assert.Equal(t, uint64(1), bp.GetStats().Evictions)
}

func TestPinnedPageSkippedByEviction(t *testing.T) {
	bp, fm := newTestPool(t, 2)
	ids := allocPages(t, fm, 3)

	_, err := bp.GetPage(ids[0])
	require.NoError(t, err)
	require.NoError(t, bp.PinPage(ids[0]))
	_, err = bp.GetPage(ids[1])
	require.NoError(t, err)

	// ids[0] is LRU but pinned; ids[1] must be evicted instead
	_, err = bp.GetPage(ids[2])
	require.NoError(t, err)

	assert.True(t, bp.Contains(ids[0]))
	assert.False(t, bp.Contains(ids[1]))
}

func TestAllPinnedFails(t *testing.T) {
	bp, fm := newTestPool(t, 2)
	ids := allocPages(t, fm, 3)

	for _, id := range ids[:2] {
		_, err := bp.GetPage(id)
		require.NoError(t, err)
		require.NoError(t, bp.PinPage(id))
	}

	_, err := bp.GetPage(ids[2])
	assert.Error(t, err)
}

func TestUnpinFloorsAtZero(t *testing.T) {
	bp, fm := newTestPool(t, 2)
	ids := allocPages(t, fm, 1)

	pg, err := bp.GetPage(ids[0])
	require.NoError(t, err)
	require.NoError(t, bp.PinPage(ids[0]))
	require.NoError(t, bp.UnpinPage(ids[0], false))
	require.NoError(t, bp.UnpinPage(ids[0], false))
	assert.Equal(t, int32(0), pg.PinCount)
}

func TestDirtyEvictionFlushes(t *testing.T) {
	bp, fm := newTestPool(t, 2)
	ids := allocPages(t, fm, 3)

	pg, err := bp.GetPage(ids[0])
	require.NoError(t, err)
	require.NoError(t, pg.WriteBytes(100, []byte("dirty row")))
	require.NoError(t, bp.UnpinPage(ids[0], true))

	// force eviction of ids[0]
	_, err = bp.GetPage(ids[1])
	require.NoError(t, err)
	_, err = bp.GetPage(ids[2])
	require.NoError(t, err)
	require.False(t, bp.Contains(ids[0]))

	// the dirty write must have reached disk
	got, err := fm.ReadPage(ids[0])
	require.NoError(t, err)
	b, err := got.ReadBytes(100, 9)
	require.NoError(t, err)
	assert.Equal(t, []byte("dirty row"), b)
}

func TestClearFlushesDirtyPages(t *testing.T) {
	bp, fm := newTestPool(t, 4)
	ids := allocPages(t, fm, 1)

	pg, err := bp.GetPage(ids[0])
	require.NoError(t, err)
	require.NoError(t, pg.WriteBytes(64, []byte("persist me")))
	require.NoError(t, bp.Clear())

	assert.False(t, bp.Contains(ids[0]))
	got, err := fm.ReadPage(ids[0])
	require.NoError(t, err)
	b, err := got.ReadBytes(64, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("persist me"), b)
}
