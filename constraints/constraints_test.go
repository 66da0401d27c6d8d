package constraints

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pesadb/catalog"
	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/index"
	"pesadb/types"
)

func newTestManager(t *testing.T) (*Manager, *index.IndexManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	fm, err := filemanager.New(filepath.Join(t.TempDir(), "constraints.db"), logger)
	require.NoError(t, err)
	require.NoError(t, fm.CreateDatabase())
	im, err := index.NewIndexManager(fm, logger)
	require.NoError(t, err)
	return NewManager(im, logger), im
}

func testSchema(t *testing.T) *catalog.TableSchema {
	t.Helper()
	schema, err := catalog.NewTableSchema("users", []catalog.Column{
		{Name: "id", Type: types.TypeInteger, Constraints: catalog.ConstraintPrimaryKey},
		{Name: "email", Type: types.TypeString, MaxLength: 128, Constraints: catalog.ConstraintUnique},
		{Name: "name", Type: types.TypeString, MaxLength: 64},
	}, nil)
	require.NoError(t, err)
	return schema
}

func TestCreateConstraintIndexes(t *testing.T) {
	m, im := newTestManager(t)
	schema := testSchema(t)

	require.NoError(t, m.CreateConstraintIndexes(schema))
	assert.True(t, im.HasIndex("users", "id"))
	assert.True(t, im.HasIndex("users", "email"))
	assert.False(t, im.HasIndex("users", "name"))

	entries := im.GetTableIndexes("users")
	require.Len(t, entries, 2)
	assert.True(t, entries[0].IsPrimary)
	assert.True(t, entries[1].IsUnique)
	assert.False(t, entries[1].IsPrimary)
}

func TestValidateInsert(t *testing.T) {
	m, im := newTestManager(t)
	schema := testSchema(t)
	require.NoError(t, m.CreateConstraintIndexes(schema))

	row := []types.Value{types.NewInteger(1), types.NewString("a@x.io"), types.NewString("Alice")}
	require.NoError(t, m.ValidateInsert(schema, row))

	// simulate the row landing in the indexes
	_, err := im.Insert("users", "id", row[0], 10)
	require.NoError(t, err)
	_, err = im.Insert("users", "email", row[1], 10)
	require.NoError(t, err)

	// duplicate primary key
	err = m.ValidateInsert(schema, []types.Value{types.NewInteger(1), types.NewString("b@x.io"), types.NewNull()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry '1' for key 'id'")

	// duplicate unique column
	err = m.ValidateInsert(schema, []types.Value{types.NewInteger(2), types.NewString("a@x.io"), types.NewNull()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key 'email'")

	// NULL primary key
	err = m.ValidateInsert(schema, []types.Value{types.NewNull(), types.NewString("c@x.io"), types.NewNull()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIMARY KEY")

	// multiple NULLs allowed in a UNIQUE column
	require.NoError(t, m.ValidateInsert(schema, []types.Value{types.NewInteger(2), types.NewNull(), types.NewNull()}))
	require.NoError(t, m.ValidateInsert(schema, []types.Value{types.NewInteger(3), types.NewNull(), types.NewNull()}))
}

func TestValidateNotNull(t *testing.T) {
	m, _ := newTestManager(t)
	schema, err := catalog.NewTableSchema("notes", []catalog.Column{
		{Name: "id", Type: types.TypeInteger, Constraints: catalog.ConstraintPrimaryKey},
		{Name: "body", Type: types.TypeString, MaxLength: 255, Constraints: catalog.ConstraintNotNull},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, m.CreateConstraintIndexes(schema))

	err = m.ValidateInsert(schema, []types.Value{types.NewInteger(1), types.NewNull()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be NULL")
	assert.NotContains(t, err.Error(), "PRIMARY KEY")

	// A NULL primary key keeps its PK-labelled message even though the
	// NOT NULL check reaches it first.
	err = m.ValidateInsert(schema, []types.Value{types.NewNull(), types.NewString("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIMARY KEY")

	oldRow := []types.Value{types.NewInteger(1), types.NewString("hi")}
	err = m.ValidateUpdate(schema, oldRow, []types.Value{types.NewInteger(1), types.NewNull()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be NULL")
}

func TestValidateUpdate(t *testing.T) {
	m, im := newTestManager(t)
	schema := testSchema(t)
	require.NoError(t, m.CreateConstraintIndexes(schema))

	_, err := im.Insert("users", "id", types.NewInteger(1), 10)
	require.NoError(t, err)
	_, err = im.Insert("users", "email", types.NewString("a@x.io"), 10)
	require.NoError(t, err)

	oldRow := []types.Value{types.NewInteger(1), types.NewString("a@x.io"), types.NewString("Alice")}

	// unchanged constrained columns pass even though they exist in the index
	newRow := []types.Value{types.NewInteger(1), types.NewString("a@x.io"), types.NewString("Alicia")}
	require.NoError(t, m.ValidateUpdate(schema, oldRow, newRow))

	// changing the pk to an existing key fails
	_, err = im.Insert("users", "id", types.NewInteger(2), 11)
	require.NoError(t, err)
	newRow = []types.Value{types.NewInteger(2), types.NewString("a@x.io"), types.NewString("Alice")}
	err = m.ValidateUpdate(schema, oldRow, newRow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry")

	// changing to a fresh pk passes
	newRow = []types.Value{types.NewInteger(99), types.NewString("a@x.io"), types.NewString("Alice")}
	require.NoError(t, m.ValidateUpdate(schema, oldRow, newRow))

	// pk cannot become NULL
	newRow = []types.Value{types.NewNull(), types.NewString("a@x.io"), types.NewString("Alice")}
	assert.Error(t, m.ValidateUpdate(schema, oldRow, newRow))

	// unique column may become NULL
	newRow = []types.Value{types.NewInteger(1), types.NewNull(), types.NewString("Alice")}
	require.NoError(t, m.ValidateUpdate(schema, oldRow, newRow))
}

func TestValidateUpdateBatch(t *testing.T) {
	m, im := newTestManager(t)
	schema := testSchema(t)
	require.NoError(t, m.CreateConstraintIndexes(schema))

	_, err := im.Insert("users", "email", types.NewString("a@x.io"), 10)
	require.NoError(t, err)
	_, err = im.Insert("users", "email", types.NewString("b@x.io"), 11)
	require.NoError(t, err)

	oldRows := [][]types.Value{
		{types.NewInteger(1), types.NewString("a@x.io"), types.NewString("Alice")},
		{types.NewInteger(2), types.NewString("b@x.io"), types.NewString("Bob")},
	}

	// two rows claiming the same unique key within one statement
	newRows := [][]types.Value{
		{types.NewInteger(1), types.NewString("c@x.io"), types.NewString("Alice")},
		{types.NewInteger(2), types.NewString("c@x.io"), types.NewString("Bob")},
	}
	err = m.ValidateUpdateBatch(schema, oldRows, newRows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry 'c@x.io' for key 'email'")

	// a key released by one row may be claimed by another
	newRows = [][]types.Value{
		{types.NewInteger(1), types.NewString("b@x.io"), types.NewString("Alice")},
		{types.NewInteger(2), types.NewString("c@x.io"), types.NewString("Bob")},
	}
	require.NoError(t, m.ValidateUpdateBatch(schema, oldRows, newRows))

	// multiple rows may all land on NULL
	newRows = [][]types.Value{
		{types.NewInteger(1), types.NewNull(), types.NewString("Alice")},
		{types.NewInteger(2), types.NewNull(), types.NewString("Bob")},
	}
	require.NoError(t, m.ValidateUpdateBatch(schema, oldRows, newRows))

	// a key still held by an untouched row stays off limits
	one := [][]types.Value{oldRows[0]}
	err = m.ValidateUpdateBatch(schema, one,
		[][]types.Value{{types.NewInteger(1), types.NewString("b@x.io"), types.NewString("Alice")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry")
}
