package bufferpool

import (
	"log/slog"
	"sync"

	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/page"
)

/*
This file holds the buffer pool structs.

The pool caches pages by ID with LRU replacement. accessOrder is the
recency list: index 0 is the least recently used page, the last index
the most recent. Pinned pages are never evicted.
*/

type BufferPool struct {
	pages       map[uint32]*page.Page
	accessOrder []uint32
	capacity    int
	fileManager *filemanager.FileManager
	logger      *slog.Logger

	hits      uint64
	misses    uint64
	evictions uint64

	mu sync.Mutex
}

// Stats is a point-in-time snapshot of pool behaviour.
type Stats struct {
	TotalPages  int     `json:"total_pages"`
	Capacity    int     `json:"capacity"`
	PinnedPages int     `json:"pinned_pages"`
	DirtyPages  int     `json:"dirty_pages"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	HitRate     float64 `json:"hit_rate"`
}
