package index

import (
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pesadb/storage_engine/filemanager"
	"pesadb/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestFM(t *testing.T) *filemanager.FileManager {
	t.Helper()
	fm, err := filemanager.New(filepath.Join(t.TempDir(), "index.db"), testLogger())
	require.NoError(t, err)
	require.NoError(t, fm.CreateDatabase())
	return fm
}

func newTestTree(t *testing.T) *BPlusTree {
	t.Helper()
	tree, err := NewBPlusTree(newTestFM(t), 0, DefaultOrder, testLogger())
	require.NoError(t, err)
	return tree
}

func TestInsertAndSearch(t *testing.T) {
	tree := newTestTree(t)

	for i := 0; i < 10; i++ {
		ok, err := tree.Insert(types.NewInteger(int64(i)), uint32(100+i))
		require.NoError(t, err)
		assert.True(t, ok, "insert %d", i)
	}

	for i := 0; i < 10; i++ {
		v, found, err := tree.Search(types.NewInteger(int64(i)))
		require.NoError(t, err)
		require.True(t, found, "key %d", i)
		assert.Equal(t, uint32(100+i), v)
	}

	_, found, err := tree.Search(types.NewInteger(999))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDuplicateRejected(t *testing.T) {
	tree := newTestTree(t)

	ok, err := tree.Insert(types.NewInteger(7), 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tree.Insert(types.NewInteger(7), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	// original locator survives
	v, found, err := tree.Search(types.NewInteger(7))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(1), v)
}

func TestRootSplitGrowsTree(t *testing.T) {
	tree := newTestTree(t)
	initialRoot := tree.RootPageID()

	// order 4 leaves hold 3 keys; the 4th insert forces a root split
	for i := 0; i < 4; i++ {
		ok, err := tree.Insert(types.NewInteger(int64(i)), uint32(i))
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.NotEqual(t, initialRoot, tree.RootPageID())

	for i := 0; i < 4; i++ {
		_, found, err := tree.Search(types.NewInteger(int64(i)))
		require.NoError(t, err)
		assert.True(t, found, "key %d after split", i)
	}
}

func TestDeepTreeSequentialKeys(t *testing.T) {
	tree := newTestTree(t)

	// enough keys to force internal-node splits at order 4
	const n = 200
	for i := 0; i < n; i++ {
		ok, err := tree.Insert(types.NewInteger(int64(i)), uint32(i*10))
		require.NoError(t, err)
		require.True(t, ok, "insert %d", i)
	}
	for i := 0; i < n; i++ {
		v, found, err := tree.Search(types.NewInteger(int64(i)))
		require.NoError(t, err)
		require.True(t, found, "key %d", i)
		assert.Equal(t, uint32(i*10), v)
	}
}

func TestDeepTreeRandomKeys(t *testing.T) {
	tree := newTestTree(t)
	rng := rand.New(rand.NewSource(42))

	keys := rng.Perm(300)
	for _, k := range keys {
		ok, err := tree.Insert(types.NewInteger(int64(k)), uint32(k))
		require.NoError(t, err)
		require.True(t, ok, "insert %d", k)
	}
	for _, k := range keys {
		v, found, err := tree.Search(types.NewInteger(int64(k)))
		require.NoError(t, err)
		require.True(t, found, "key %d", k)
		assert.Equal(t, uint32(k), v)
	}
}

func TestRangeSearch(t *testing.T) {
	tree := newTestTree(t)

	for i := 0; i < 50; i++ {
		ok, err := tree.Insert(types.NewInteger(int64(i)), uint32(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	results, err := tree.RangeSearch(types.NewInteger(10), types.NewInteger(20))
	require.NoError(t, err)
	require.Len(t, results, 11)
	// leaf-chain walk yields ascending key order
	for i, v := range results {
		assert.Equal(t, uint32(10+i), v)
	}

	// empty range
	results, err = tree.RangeSearch(types.NewInteger(100), types.NewInteger(200))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRangeSearchStrings(t *testing.T) {
	tree := newTestTree(t)

	words := []string{"apple", "banana", "cherry", "date", "elderberry", "fig", "grape"}
	for i, w := range words {
		ok, err := tree.Insert(types.NewString(w), uint32(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	results, err := tree.RangeSearch(types.NewString("banana"), types.NewString("date"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, results)
}

func TestDeleteLeafEntry(t *testing.T) {
	tree := newTestTree(t)

	for i := 0; i < 20; i++ {
		ok, err := tree.Insert(types.NewInteger(int64(i)), uint32(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	deleted, err := tree.Delete(types.NewInteger(5))
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err := tree.Search(types.NewInteger(5))
	require.NoError(t, err)
	assert.False(t, found)

	// neighbours untouched
	for _, k := range []int64{4, 6} {
		_, found, err := tree.Search(types.NewInteger(k))
		require.NoError(t, err)
		assert.True(t, found)
	}

	deleted, err = tree.Delete(types.NewInteger(5))
	require.NoError(t, err)
	assert.False(t, deleted)

	// key can come back after a delete
	ok, err := tree.Insert(types.NewInteger(5), 55)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTreeReopenFromRoot(t *testing.T) {
	fm := newTestFM(t)
	tree, err := NewBPlusTree(fm, 0, DefaultOrder, testLogger())
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		ok, err := tree.Insert(types.NewInteger(int64(i)), uint32(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	reopened, err := NewBPlusTree(fm, tree.RootPageID(), DefaultOrder, testLogger())
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		v, found, err := reopened.Search(types.NewInteger(int64(i)))
		require.NoError(t, err)
		require.True(t, found, "key %d", i)
		assert.Equal(t, uint32(i), v)
	}
}
