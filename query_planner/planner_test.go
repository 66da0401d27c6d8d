package planner

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"pesadb/catalog"
	"pesadb/query_parser/parser"
	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/index"
	"pesadb/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlanner(t *testing.T) (*Planner, *catalog.Catalog, *index.IndexManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	fm, err := filemanager.New(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	require.NoError(t, fm.CreateDatabase())

	cat, err := catalog.New(fm, logger)
	require.NoError(t, err)
	im, err := index.NewIndexManager(fm, logger)
	require.NoError(t, err)

	users, err := catalog.NewTableSchema("users", []catalog.Column{
		{Name: "id", Type: types.TypeInteger, Constraints: catalog.ConstraintPrimaryKey},
		{Name: "name", Type: types.TypeString, MaxLength: 64},
		{Name: "age", Type: types.TypeInteger},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, cat.CreateTable(users))
	require.NoError(t, im.CreateIndex("users", "id", true, true))

	orders, err := catalog.NewTableSchema("orders", []catalog.Column{
		{Name: "id", Type: types.TypeInteger, Constraints: catalog.ConstraintPrimaryKey},
		{Name: "user_id", Type: types.TypeInteger},
		{Name: "total", Type: types.TypeDouble},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, cat.CreateTable(orders))

	return New(cat, im, logger), cat, im
}

func plan(t *testing.T, p *Planner, sql string) Plan {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	pl, err := p.Plan(stmt)
	require.NoError(t, err)
	return pl
}

func TestPlanSelectStar(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	sel := plan(t, p, "SELECT * FROM users").(*SelectPlan)
	assert.Equal(t, []int{0, 1, 2}, sel.ColumnIndices)
	assert.Equal(t, []string{"id", "name", "age"}, sel.ColumnNames)
	assert.Equal(t, SeqScan, sel.Access)
}

func TestPlanSelectStarWithJoinExpandsBothTables(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	sel := plan(t, p, "SELECT * FROM users JOIN orders ON users.id = orders.user_id").(*SelectPlan)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, sel.ColumnIndices)
	assert.Equal(t, []string{"id", "name", "age", "orders.id", "orders.user_id", "orders.total"}, sel.ColumnNames)
	require.Len(t, sel.Joins, 1)
	assert.True(t, sel.Joins[0].On.Left.IsColumn)
	assert.Equal(t, "user_id", sel.Joins[0].On.Right.Column)
}

func TestPlanSelectQualifiedColumns(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	sel := plan(t, p, "SELECT u.name, o.total FROM users u JOIN orders o ON u.id = o.user_id").(*SelectPlan)
	assert.Equal(t, []int{1, 5}, sel.ColumnIndices)
	assert.Equal(t, []string{"u.name", "o.total"}, sel.ColumnNames)
}

func TestPlanSelectUnknownColumn(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	stmt, err := parser.Parse("SELECT nope FROM users")
	require.NoError(t, err)
	_, err = p.Plan(stmt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestPlanSelectFilterExtraction(t *testing.T) {
	p, _, _ := newTestPlanner(t)
	sel := plan(t, p, "SELECT * FROM users WHERE age > 18 AND name = 'bob' OR age < 5").(*SelectPlan)
	require.Len(t, sel.Filters, 3)
	assert.Equal(t, "AND", sel.Filters[0].Connector)
	assert.Equal(t, "AND", sel.Filters[1].Connector)
	assert.Equal(t, "OR", sel.Filters[2].Connector)
	assert.Equal(t, 2, sel.Filters[0].ColumnIndex)
	assert.Equal(t, ">", sel.Filters[0].Operator)
	assert.True(t, sel.Filters[0].Value.Equal(types.NewInteger(18)))
}

func TestPlanSelectFilterOnJoinedColumn(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	// Filter indices address the joined row shape: users(0-2) then
	// orders(3-5).
	sel := plan(t, p, "SELECT u.name FROM users u JOIN orders o ON u.id = o.user_id WHERE o.total > 5.0").(*SelectPlan)
	require.Len(t, sel.Filters, 1)
	assert.Equal(t, 5, sel.Filters[0].ColumnIndex)
	assert.Equal(t, "total", sel.Filters[0].ColumnName)

	// A joined column sharing its name with an indexed base column must
	// not trigger an index scan on the base table.
	sel = plan(t, p, "SELECT u.name FROM users u JOIN orders o ON u.id = o.user_id WHERE o.id = 1").(*SelectPlan)
	assert.Equal(t, 3, sel.Filters[0].ColumnIndex)
	assert.Equal(t, SeqScan, sel.Access)

	// A base-column filter still narrows through the index with a join
	// present.
	sel = plan(t, p, "SELECT u.name FROM users u JOIN orders o ON u.id = o.user_id WHERE u.id = 1").(*SelectPlan)
	assert.Equal(t, IndexScan, sel.Access)
}

func TestPlanSelectIndexScan(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	sel := plan(t, p, "SELECT * FROM users WHERE id = 7").(*SelectPlan)
	assert.Equal(t, IndexScan, sel.Access)
	assert.Equal(t, "id", sel.IndexColumn)

	// No index on age.
	sel = plan(t, p, "SELECT * FROM users WHERE age = 7").(*SelectPlan)
	assert.Equal(t, SeqScan, sel.Access)

	// OR-connected conditions cannot use an index scan.
	sel = plan(t, p, "SELECT * FROM users WHERE id = 7 OR age = 3").(*SelectPlan)
	assert.Equal(t, SeqScan, sel.Access)

	// != is not an index-compatible operator.
	sel = plan(t, p, "SELECT * FROM users WHERE id != 7").(*SelectPlan)
	assert.Equal(t, SeqScan, sel.Access)
}

func TestPlanInsert(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	ins := plan(t, p, "INSERT INTO users (name, id) VALUES ('x', 1)").(*InsertPlan)
	assert.Equal(t, []int{1, 0}, ins.ColumnIndices)

	ins = plan(t, p, "INSERT INTO users VALUES (1, 'x', 30)").(*InsertPlan)
	assert.Equal(t, []int{0, 1, 2}, ins.ColumnIndices)

	stmt, err := parser.Parse("INSERT INTO users VALUES (1, 'x')")
	require.NoError(t, err)
	_, err = p.Plan(stmt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 3 values")
}

func TestPlanCreateTable(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	ct := plan(t, p, "CREATE TABLE items (id INT PRIMARY KEY, tag STRING(32), price DOUBLE DEFAULT 1.5)").(*CreateTablePlan)
	require.Len(t, ct.Schema.Columns, 3)
	assert.Equal(t, types.TypeString, ct.Schema.Columns[1].Type)
	assert.Equal(t, uint16(32), ct.Schema.Columns[1].MaxLength)
	assert.Equal(t, "1.5", ct.Schema.Columns[2].Default)
	assert.Equal(t, "id", ct.Schema.PrimaryKey)

	// Existing table without IF NOT EXISTS fails at planning.
	stmt, err := parser.Parse("CREATE TABLE users (id INT)")
	require.NoError(t, err)
	_, err = p.Plan(stmt)
	require.Error(t, err)

	// With IF NOT EXISTS it plans fine.
	plan(t, p, "CREATE TABLE IF NOT EXISTS users (id INT)")
}

func TestPlanDropTable(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	drop := plan(t, p, "DROP TABLE users").(*DropTablePlan)
	assert.Equal(t, "users", drop.Table)

	stmt, err := parser.Parse("DROP TABLE ghosts")
	require.NoError(t, err)
	_, err = p.Plan(stmt)
	require.Error(t, err)

	plan(t, p, "DROP TABLE IF EXISTS ghosts")
}

func TestPlanUpdateAndDelete(t *testing.T) {
	p, _, _ := newTestPlanner(t)

	up := plan(t, p, "UPDATE users SET age = 31 WHERE id = 1").(*UpdatePlan)
	require.Len(t, up.Assignments, 1)
	assert.Equal(t, 2, up.Assignments[0].ColumnIndex)
	require.Len(t, up.Filters, 1)

	del := plan(t, p, "DELETE FROM users WHERE age < 0").(*DeletePlan)
	require.Len(t, del.Filters, 1)
	assert.Equal(t, "<", del.Filters[0].Operator)
}

func TestParseColumnType(t *testing.T) {
	typ, maxLen, err := parseColumnType("STRING(10)")
	require.NoError(t, err)
	assert.Equal(t, types.TypeString, typ)
	assert.Equal(t, uint16(10), maxLen)

	typ, maxLen, err = parseColumnType("STRING")
	require.NoError(t, err)
	assert.Equal(t, uint16(255), maxLen)

	_, _, err = parseColumnType("WIDGET")
	require.Error(t, err)

	_, _, err = parseColumnType("STRING(0)")
	require.Error(t, err)
}
