package executor

import (
	"log/slog"

	"pesadb/catalog"
	"pesadb/constraints"
	"pesadb/storage_engine/bufferpool"
	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/index"
)

// Executor walks execution plans against the storage layer. Page reads
// go through the buffer pool; writes go straight through the WAL path
// so the on-disk image and the cached page stay in step.
type Executor struct {
	fileManager *filemanager.FileManager
	bufferPool  *bufferpool.BufferPool
	catalog     *catalog.Catalog
	indexes     *index.IndexManager
	constraints *constraints.Manager
	logger      *slog.Logger
}

func New(
	fm *filemanager.FileManager,
	bp *bufferpool.BufferPool,
	cat *catalog.Catalog,
	im *index.IndexManager,
	cm *constraints.Manager,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		fileManager: fm,
		bufferPool:  bp,
		catalog:     cat,
		indexes:     im,
		constraints: cm,
		logger:      logger.With("component", "executor"),
	}
}

type CreateTableResult struct {
	Table   string
	Created bool
}

type DropTableResult struct {
	Table   string
	Dropped bool
}

type InsertResult struct {
	RowsInserted int
}

type UpdateResult struct {
	RowsUpdated int
}

type DeleteResult struct {
	RowsDeleted int
}
