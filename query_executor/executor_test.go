package executor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"pesadb/catalog"
	"pesadb/constraints"
	"pesadb/query_parser/parser"
	"pesadb/query_planner"
	"pesadb/storage_engine/bufferpool"
	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/index"
	"pesadb/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) (*Executor, *planner.Planner) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	fm, err := filemanager.New(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	require.NoError(t, fm.CreateDatabase())

	bp := bufferpool.New(64, fm, logger)
	cat, err := catalog.New(fm, logger)
	require.NoError(t, err)
	im, err := index.NewIndexManager(fm, logger)
	require.NoError(t, err)
	cm := constraints.NewManager(im, logger)

	return New(fm, bp, cat, im, cm, logger), planner.New(cat, im, logger)
}

func exec(t *testing.T, e *Executor, p *planner.Planner, sql string) any {
	t.Helper()
	res, err := execErr(e, p, sql)
	require.NoError(t, err, "executing %q", sql)
	return res
}

func execErr(e *Executor, p *planner.Planner, sql string) (any, error) {
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	pl, err := p.Plan(stmt)
	if err != nil {
		return nil, err
	}
	return e.Execute(pl)
}

func query(t *testing.T, e *Executor, p *planner.Planner, sql string) []*Row {
	t.Helper()
	rows, ok := exec(t, e, p, sql).([]*Row)
	require.True(t, ok, "expected row result for %q", sql)
	return rows
}

func TestCreateInsertSelectRoundTrip(t *testing.T) {
	e, p := newTestExecutor(t)

	res := exec(t, e, p, "CREATE TABLE users (id INT PRIMARY KEY, name STRING(64), age INT)")
	assert.True(t, res.(*CreateTableResult).Created)

	ins := exec(t, e, p, "INSERT INTO users VALUES (1, 'alice', 30), (2, 'bob', 25), (3, 'carol', 41)")
	assert.Equal(t, 3, ins.(*InsertResult).RowsInserted)

	rows := query(t, e, p, "SELECT id, name, age FROM users")
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0].Values[0].Int)
	assert.Equal(t, "alice", rows[0].Values[1].Str)
	assert.Equal(t, int64(41), rows[2].Values[2].Int)
}

func TestCreateTableIfNotExists(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT)")
	res := exec(t, e, p, "CREATE TABLE IF NOT EXISTS t (id INT)")
	assert.False(t, res.(*CreateTableResult).Created)
}

func TestInsertDefaultsAndNulls(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE prefs (id INT PRIMARY KEY, theme STRING(20) DEFAULT 'dark', level INT)")
	exec(t, e, p, "INSERT INTO prefs (id) VALUES (1)")

	rows := query(t, e, p, "SELECT * FROM prefs")
	require.Len(t, rows, 1)
	assert.Equal(t, "dark", rows[0].Values[1].Str)
	assert.True(t, rows[0].Values[2].IsNull())
}

func TestInsertConstraintViolations(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE users (id INT PRIMARY KEY, email STRING(64) UNIQUE, name STRING(32) NOT NULL)")
	exec(t, e, p, "INSERT INTO users VALUES (1, 'a@x.com', 'alice')")

	_, err := execErr(e, p, "INSERT INTO users VALUES (1, 'b@x.com', 'bob')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry")

	_, err = execErr(e, p, "INSERT INTO users VALUES (2, 'a@x.com', 'bob')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry")

	_, err = execErr(e, p, "INSERT INTO users (id, email) VALUES (3, 'c@x.com')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be NULL")
}

func TestSelectWhereAndComparisons(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE nums (id INT PRIMARY KEY, v INT)")
	exec(t, e, p, "INSERT INTO nums VALUES (1, 10), (2, 20), (3, 30), (4, 40)")

	rows := query(t, e, p, "SELECT id FROM nums WHERE v > 15 AND v <= 30")
	require.Len(t, rows, 2)

	rows = query(t, e, p, "SELECT id FROM nums WHERE v = 10 OR v = 40")
	require.Len(t, rows, 2)

	rows = query(t, e, p, "SELECT id FROM nums WHERE v != 20")
	require.Len(t, rows, 3)
}

func TestSelectOrderLimitOffset(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, score INT)")
	exec(t, e, p, "INSERT INTO t VALUES (1, 50), (2, 10), (3, 30), (4, 20)")

	rows := query(t, e, p, "SELECT id FROM t ORDER BY score DESC")
	require.Len(t, rows, 4)
	assert.Equal(t, int64(1), rows[0].Values[0].Int)
	assert.Equal(t, int64(2), rows[3].Values[0].Int)

	rows = query(t, e, p, "SELECT id FROM t ORDER BY score LIMIT 2 OFFSET 1")
	require.Len(t, rows, 2)
	assert.Equal(t, int64(4), rows[0].Values[0].Int)
	assert.Equal(t, int64(3), rows[1].Values[0].Int)

	// Offset past the end yields nothing.
	rows = query(t, e, p, "SELECT id FROM t LIMIT 10 OFFSET 100")
	assert.Empty(t, rows)
}

func TestSelectOrderByNullsFirst(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, v INT)")
	exec(t, e, p, "INSERT INTO t (id, v) VALUES (1, 5), (3, 2)")
	exec(t, e, p, "INSERT INTO t (id) VALUES (2)")

	rows := query(t, e, p, "SELECT id, v FROM t ORDER BY v")
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Values[1].IsNull())
	assert.Equal(t, int64(3), rows[1].Values[0].Int)
	assert.Equal(t, int64(1), rows[2].Values[0].Int)
}

func TestIndexScanEquality(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE users (id INT PRIMARY KEY, name STRING(32))")
	exec(t, e, p, "INSERT INTO users VALUES (1, 'a'), (2, 'b'), (3, 'c')")

	stmt, err := parser.Parse("SELECT name FROM users WHERE id = 2")
	require.NoError(t, err)
	pl, err := p.Plan(stmt)
	require.NoError(t, err)
	require.Equal(t, planner.IndexScan, pl.(*planner.SelectPlan).Access)

	res, err := e.Execute(pl)
	require.NoError(t, err)
	rows := res.([]*Row)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Values[0].Str)
}

func TestUpdateInPlace(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, age INT)")
	exec(t, e, p, "INSERT INTO t VALUES (1, 30), (2, 25)")

	res := exec(t, e, p, "UPDATE t SET age = age + 1 WHERE id = 1")
	assert.Equal(t, 1, res.(*UpdateResult).RowsUpdated)

	rows := query(t, e, p, "SELECT age FROM t WHERE id = 1")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(31), rows[0].Values[0].Int)

	rows = query(t, e, p, "SELECT age FROM t WHERE id = 2")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(25), rows[0].Values[0].Int)
}

func TestUpdateResizedRow(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, name STRING(64))")
	exec(t, e, p, "INSERT INTO t VALUES (1, 'a'), (2, 'b')")

	// The new string is longer, forcing a page rewrite and re-insert.
	res := exec(t, e, p, "UPDATE t SET name = 'a much longer name' WHERE id = 1")
	assert.Equal(t, 1, res.(*UpdateResult).RowsUpdated)

	rows := query(t, e, p, "SELECT name FROM t WHERE id = 1")
	require.Len(t, rows, 1)
	assert.Equal(t, "a much longer name", rows[0].Values[0].Str)

	rows = query(t, e, p, "SELECT * FROM t")
	assert.Len(t, rows, 2)
}

func TestUpdateAllRows(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, v INT)")
	exec(t, e, p, "INSERT INTO t VALUES (1, 0), (2, 0), (3, 0)")

	res := exec(t, e, p, "UPDATE t SET v = 7")
	assert.Equal(t, 3, res.(*UpdateResult).RowsUpdated)

	rows := query(t, e, p, "SELECT v FROM t")
	for _, row := range rows {
		assert.Equal(t, int64(7), row.Values[0].Int)
	}
}

func TestUpdateManyRowsToSameUniqueValue(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, u INT UNIQUE)")
	exec(t, e, p, "INSERT INTO t VALUES (1, 10), (2, 20)")

	// Both rows would land on u = 30.
	_, err := execErr(e, p, "UPDATE t SET u = 30")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry")

	rows := query(t, e, p, "SELECT u FROM t ORDER BY id")
	require.Len(t, rows, 2)
	assert.Equal(t, int64(10), rows[0].Values[0].Int)
	assert.Equal(t, int64(20), rows[1].Values[0].Int)
}

func TestUpdateShiftsUniqueValues(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, u INT UNIQUE)")
	exec(t, e, p, "INSERT INTO t VALUES (1, 10), (2, 20)")

	// Row 1 takes the key row 2 gives up in the same statement.
	res := exec(t, e, p, "UPDATE t SET u = u + 10")
	assert.Equal(t, 2, res.(*UpdateResult).RowsUpdated)

	rows := query(t, e, p, "SELECT u FROM t ORDER BY id")
	require.Len(t, rows, 2)
	assert.Equal(t, int64(20), rows[0].Values[0].Int)
	assert.Equal(t, int64(30), rows[1].Values[0].Int)
}

func TestFailedUpdateLeavesIndexesIntact(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, u INT UNIQUE)")
	exec(t, e, p, "INSERT INTO t VALUES (1, 10), (2, 20)")

	_, err := execErr(e, p, "UPDATE t SET u = 30")
	require.Error(t, err)

	// The rejected statement must not have stripped any index entries.
	_, err = execErr(e, p, "INSERT INTO t VALUES (1, 99)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry")

	_, err = execErr(e, p, "INSERT INTO t VALUES (3, 10)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate entry")

	exec(t, e, p, "INSERT INTO t VALUES (3, 30)")
	rows := query(t, e, p, "SELECT * FROM t")
	assert.Len(t, rows, 3)
}

func TestDelete(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, v INT)")
	exec(t, e, p, "INSERT INTO t VALUES (1, 10), (2, 20), (3, 30)")

	res := exec(t, e, p, "DELETE FROM t WHERE v >= 20")
	assert.Equal(t, 2, res.(*DeleteResult).RowsDeleted)

	rows := query(t, e, p, "SELECT id FROM t")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Values[0].Int)

	// Deleted primary keys can be reused.
	exec(t, e, p, "INSERT INTO t VALUES (2, 99)")
	rows = query(t, e, p, "SELECT * FROM t")
	assert.Len(t, rows, 2)
}

func TestDeleteWithoutFilterEmptiesTable(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY)")
	exec(t, e, p, "INSERT INTO t VALUES (1), (2), (3)")

	res := exec(t, e, p, "DELETE FROM t")
	assert.Equal(t, 3, res.(*DeleteResult).RowsDeleted)
	assert.Empty(t, query(t, e, p, "SELECT * FROM t"))
}

func TestDropTable(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY)")
	res := exec(t, e, p, "DROP TABLE t")
	assert.True(t, res.(*DropTableResult).Dropped)

	_, err := execErr(e, p, "SELECT * FROM t")
	require.Error(t, err)

	res = exec(t, e, p, "DROP TABLE IF EXISTS t")
	assert.False(t, res.(*DropTableResult).Dropped)
}

func TestMultiPageTable(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE big (id INT PRIMARY KEY, tag STRING(64))")
	for i := 0; i < 400; i++ {
		exec(t, e, p, fmt.Sprintf("INSERT INTO big VALUES (%d, 'row number %d padded out a bit')", i, i))
	}

	pages, err := e.findTablePages("big")
	require.NoError(t, err)
	assert.Greater(t, len(pages), 1, "rows should have spilled to a second page")

	rows := query(t, e, p, "SELECT * FROM big")
	assert.Len(t, rows, 400)

	rows = query(t, e, p, "SELECT tag FROM big WHERE id = 399")
	require.Len(t, rows, 1)
	assert.Equal(t, "row number 399 padded out a bit", rows[0].Values[0].Str)
}

func TestExpressionProjectionAndArithmetic(t *testing.T) {
	e, p := newTestExecutor(t)

	exec(t, e, p, "CREATE TABLE t (id INT PRIMARY KEY, a INT, b INT)")
	exec(t, e, p, "INSERT INTO t VALUES (1, 6, 3)")

	res := exec(t, e, p, "UPDATE t SET a = a * b + 2")
	assert.Equal(t, 1, res.(*UpdateResult).RowsUpdated)

	rows := query(t, e, p, "SELECT a FROM t")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(20), rows[0].Values[0].Int)

	_, err := execErr(e, p, "UPDATE t SET a = a / 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestRowSerializationRoundTrip(t *testing.T) {
	schema, err := catalog.NewTableSchema("t", []catalog.Column{
		{Name: "id", Type: types.TypeInteger},
		{Name: "name", Type: types.TypeString, MaxLength: 32},
		{Name: "score", Type: types.TypeDouble},
		{Name: "active", Type: types.TypeBoolean},
	}, nil)
	require.NoError(t, err)

	row := &Row{Values: []types.Value{
		types.NewInteger(42),
		types.NewString("hello"),
		types.NewDouble(2.5),
		types.NewNull(),
	}}

	got, err := DeserializeRow(row.Serialize(), schema, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, got.RowID)
	require.Len(t, got.Values, 4)
	assert.True(t, got.Values[0].Equal(types.NewInteger(42)))
	assert.Equal(t, "hello", got.Values[1].Str)
	assert.True(t, got.Values[3].IsNull())
}
