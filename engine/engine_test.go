package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"pesadb/query_executor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.DefaultDatabase = "test"

	e, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func run(t *testing.T, e *Engine, sql string) any {
	t.Helper()
	res, err := e.ExecuteSQL(sql)
	require.NoError(t, err, "executing %q", sql)
	return res
}

func TestEngineEndToEnd(t *testing.T) {
	e := newTestEngine(t)

	run(t, e, "CREATE TABLE users (id INT PRIMARY KEY, name STRING(32), age INT)")
	ins := run(t, e, "INSERT INTO users VALUES (1, 'alice', 30), (2, 'bob', 25)")
	assert.Equal(t, 2, ins.(*executor.InsertResult).RowsInserted)

	res := run(t, e, "SELECT name, age FROM users ORDER BY age").(*Result)
	assert.Equal(t, []string{"name", "age"}, res.Columns)
	require.Equal(t, 2, res.RowCount)
	assert.Equal(t, []string{"bob", "25"}, res.Rows[0])
	assert.Equal(t, []string{"alice", "30"}, res.Rows[1])
}

func TestEngineSyntaxError(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.ExecuteSQL("SELEKT * FROM users")
	require.Error(t, err)

	_, err = e.ExecuteSQL("SELECT FROM users")
	require.Error(t, err)
}

func TestEngineNoDatabaseSelected(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()

	e, err := New(cfg, logger)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.ExecuteSQL("SELECT * FROM users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database selected")
}

func TestEngineCreateAndUseDatabase(t *testing.T) {
	e := newTestEngine(t)

	res := run(t, e, "CREATE DATABASE analytics").(*StatusResult)
	assert.Equal(t, "database created", res.Status)
	// CREATE DATABASE leaves the session on the current database.
	assert.Equal(t, "test", e.CurrentDatabase())

	res = run(t, e, "USE analytics").(*StatusResult)
	assert.Equal(t, "database changed", res.Status)
	assert.Equal(t, "analytics", e.CurrentDatabase())

	// Tables are per database.
	run(t, e, "CREATE TABLE events (id INT PRIMARY KEY)")
	run(t, e, "USE test")
	_, err := e.ExecuteSQL("SELECT * FROM events")
	require.Error(t, err)

	_, err = e.ExecuteSQL("USE nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database")

	_, err = e.ExecuteSQL("CREATE DATABASE analytics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestEngineShowDatabases(t *testing.T) {
	e := newTestEngine(t)
	run(t, e, "CREATE DATABASE zeta")
	run(t, e, "CREATE DATABASE alpha")

	res := run(t, e, "SHOW DATABASES").(*Result)
	assert.Equal(t, []string{"Database"}, res.Columns)
	assert.Equal(t, [][]string{{"alpha"}, {"test"}, {"zeta"}}, res.Rows)
}

func TestEngineShowTablesAndDescribe(t *testing.T) {
	e := newTestEngine(t)

	run(t, e, "CREATE TABLE users (id INT PRIMARY KEY, email STRING(64) UNIQUE, bio STRING(255))")
	run(t, e, "CREATE TABLE posts (id INT PRIMARY KEY)")

	res := run(t, e, "SHOW TABLES").(*Result)
	assert.Equal(t, 2, res.RowCount)

	res = run(t, e, "DESCRIBE users").(*Result)
	assert.Equal(t, []string{"Field", "Type", "Null", "Key", "Default"}, res.Columns)
	require.Equal(t, 3, res.RowCount)
	assert.Equal(t, []string{"id", "INTEGER", "NO", "PRI", "NULL"}, res.Rows[0])
	assert.Equal(t, []string{"email", "STRING(64)", "YES", "UNI", "NULL"}, res.Rows[1])

	_, err := e.ExecuteSQL("DESCRIBE ghosts")
	require.Error(t, err)
}

func TestEngineStatementCache(t *testing.T) {
	e := newTestEngine(t)

	run(t, e, "CREATE TABLE t (id INT PRIMARY KEY, v INT)")
	run(t, e, "INSERT INTO t VALUES (1, 10)")

	const q = "SELECT v FROM t WHERE id = 1"
	first := run(t, e, q).(*Result)
	e.statements.Wait()

	// Second run must hit the cache and see current data.
	_, cached := e.statements.Get(q)
	assert.True(t, cached)

	run(t, e, "INSERT INTO t VALUES (2, 20)")
	second := run(t, e, q).(*Result)
	assert.Equal(t, first.Rows, second.Rows)

	all := run(t, e, "SELECT v FROM t").(*Result)
	assert.Equal(t, 2, all.RowCount)
}

func TestEnginePersistenceAcrossReopen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.DefaultDatabase = "store"

	e, err := New(cfg, logger)
	require.NoError(t, err)
	run(t, e, "CREATE TABLE kv (k STRING(32) PRIMARY KEY, v STRING(64))")
	run(t, e, "INSERT INTO kv VALUES ('greeting', 'hello')")
	require.NoError(t, e.Close())

	e, err = New(cfg, logger)
	require.NoError(t, err)
	defer e.Close()

	res := run(t, e, "SELECT v FROM kv WHERE k = 'greeting'").(*Result)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, "hello", res.Rows[0][0])

	require.FileExists(t, filepath.Join(dir, "store.db"))
}

func TestEngineAdminInfo(t *testing.T) {
	e := newTestEngine(t)
	run(t, e, "CREATE TABLE t (id INT PRIMARY KEY)")
	run(t, e, "INSERT INTO t VALUES (1)")
	run(t, e, "SELECT * FROM t")

	info, err := e.DatabaseInfo()
	require.NoError(t, err)
	assert.Greater(t, info.TotalPages, uint32(2))

	cat, err := e.CatalogInfo()
	require.NoError(t, err)
	assert.Equal(t, 1, cat.TableCount)

	idx, err := e.IndexInfo()
	require.NoError(t, err)
	assert.NotEmpty(t, idx)

	stats, err := e.BufferPoolStats()
	require.NoError(t, err)
	assert.Greater(t, stats.Hits+stats.Misses, uint64(0))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pesadb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"data_dir: /tmp/pesa\nbuffer_pool_capacity: 16\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pesa", cfg.DataDir)
	assert.Equal(t, 16, cfg.BufferPoolCapacity)
	// Unset keys keep their defaults.
	assert.Equal(t, 256, cfg.StatementCacheSize)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
