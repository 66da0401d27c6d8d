package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pesadb/catalog"
	"pesadb/constraints"
	"pesadb/query_executor"
	"pesadb/query_parser/parser"
	"pesadb/query_planner"
	"pesadb/storage_engine/bufferpool"
	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/index"

	"github.com/dgraph-io/ristretto/v2"
)

// Engine is the SQL-string-in, result-out surface over the whole
// stack. One database is open at a time; USE tears the stack down and
// rebuilds it against another file in the data directory.
type Engine struct {
	cfg    *Config
	logger *slog.Logger

	mu     sync.Mutex
	dbName string

	fileManager *filemanager.FileManager
	bufferPool  *bufferpool.BufferPool
	catalog     *catalog.Catalog
	indexes     *index.IndexManager
	planner     *planner.Planner
	executor    *executor.Executor

	// Parsed-statement cache keyed by raw SQL text, consulted before
	// the lexer runs.
	statements *ristretto.Cache[string, parser.Statement]
}

func New(cfg *Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, parser.Statement]{
		NumCounters: int64(cfg.StatementCacheSize) * 10,
		MaxCost:     int64(cfg.StatementCacheSize),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("statement cache: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		logger:     logger.With("component", "engine"),
		statements: cache,
	}

	if cfg.DefaultDatabase != "" {
		if err := e.Open(cfg.DefaultDatabase); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) databasePath(name string) string {
	return filepath.Join(e.cfg.DataDir, name+".db")
}

// Open attaches the engine to the named database, creating the file if
// it does not exist yet.
func (e *Engine) Open(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openLocked(name, true)
}

func (e *Engine) openLocked(name string, createIfMissing bool) error {
	if err := validateDatabaseName(name); err != nil {
		return err
	}

	fm, err := filemanager.New(e.databasePath(name), e.logger)
	if err != nil {
		return err
	}
	if !fm.Exists() {
		if !createIfMissing {
			return fmt.Errorf("unknown database '%s'", name)
		}
		if err := fm.CreateDatabase(); err != nil {
			return err
		}
	}

	cat, err := catalog.New(fm, e.logger)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	im, err := index.NewIndexManager(fm, e.logger)
	if err != nil {
		return fmt.Errorf("load index catalog: %w", err)
	}
	cm := constraints.NewManager(im, e.logger)
	bp := bufferpool.New(e.cfg.BufferPoolCapacity, fm, e.logger)

	if err := e.closeStackLocked(); err != nil {
		return err
	}

	e.dbName = name
	e.fileManager = fm
	e.bufferPool = bp
	e.catalog = cat
	e.indexes = im
	e.planner = planner.New(cat, im, e.logger)
	e.executor = executor.New(fm, bp, cat, im, cm, e.logger)

	e.logger.Info("database opened", "name", name, "tables", len(cat.ListTables()))
	return nil
}

func (e *Engine) closeStackLocked() error {
	if e.fileManager == nil {
		return nil
	}
	if err := e.bufferPool.FlushAll(); err != nil {
		return err
	}
	return e.fileManager.Close()
}

// Close flushes the buffer pool and releases the open database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.closeStackLocked()
	e.fileManager = nil
	e.dbName = ""
	e.statements.Close()
	return err
}

// CurrentDatabase returns the name of the open database, or "".
func (e *Engine) CurrentDatabase() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dbName
}

func validateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	for _, r := range name {
		if r == '/' || r == '\\' || r == '.' {
			return fmt.Errorf("invalid database name '%s'", name)
		}
	}
	return nil
}

func (e *Engine) listDatabases() ([]string, error) {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".db"))
	}
	sort.Strings(names)
	return names, nil
}

// DatabaseInfo surfaces file-level stats of the open database.
func (e *Engine) DatabaseInfo() (*filemanager.DatabaseInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fileManager == nil {
		return nil, errNoDatabase
	}
	return e.fileManager.GetDatabaseInfo()
}

// CatalogInfo surfaces table-catalog stats of the open database.
func (e *Engine) CatalogInfo() (catalog.Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.catalog == nil {
		return catalog.Info{}, errNoDatabase
	}
	return e.catalog.GetCatalogInfo(), nil
}

// IndexInfo surfaces index-catalog stats of the open database.
func (e *Engine) IndexInfo() (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexes == nil {
		return nil, errNoDatabase
	}
	return e.indexes.GetIndexInfo(), nil
}

// BufferPoolStats surfaces hit/miss/eviction counters.
func (e *Engine) BufferPoolStats() (bufferpool.Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bufferPool == nil {
		return bufferpool.Stats{}, errNoDatabase
	}
	return e.bufferPool.GetStats(), nil
}
