package bufferpool

import (
	"fmt"
	"log/slog"

	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/page"
)

/*
This file is the main file of the buffer pool.

The buffer pool works on an LRU caching mechanism and holds access to
the file manager for flushing dirty pages. On a miss the file manager
loads the page from disk and the pool caches it for future access.
Eviction scans from the least-recently-used end, skips pinned pages,
and flushes a dirty victim through the WAL before dropping it.
*/

func New(capacity int, fm *filemanager.FileManager, logger *slog.Logger) *BufferPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &BufferPool{
		pages:       make(map[uint32]*page.Page, capacity),
		accessOrder: make([]uint32, 0, capacity),
		capacity:    capacity,
		fileManager: fm,
		logger:      logger.With("component", "bufferpool"),
	}
}

// GetPage retrieves a page, loading from disk on a miss. The returned
// page is cached but not pinned; callers that need eviction immunity
// must PinPage it.
func (bp *BufferPool) GetPage(pageID uint32) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if pg, ok := bp.pages[pageID]; ok {
		bp.hits++
		bp.touch(pageID)
		return pg, nil
	}

	bp.misses++
	pg, err := bp.fileManager.ReadPage(pageID)
	if err != nil {
		return nil, fmt.Errorf("load page %d: %w", pageID, err)
	}
	if err := bp.admit(pg); err != nil {
		return nil, err
	}
	return pg, nil
}

// PutPage caches a page the caller built itself (a fresh allocation
// that has no on-disk image worth re-reading).
func (bp *BufferPool) PutPage(pg *page.Page) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if _, ok := bp.pages[pg.ID]; ok {
		bp.pages[pg.ID] = pg
		bp.touch(pg.ID)
		return nil
	}
	return bp.admit(pg)
}

// PinPage increments the pin count, making the page eviction-immune
// until a matching UnpinPage.
func (bp *BufferPool) PinPage(pageID uint32) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, ok := bp.pages[pageID]
	if !ok {
		return fmt.Errorf("pin: page %d not in buffer pool", pageID)
	}
	pg.PinCount++
	return nil
}

// UnpinPage decrements the pin count (floor at zero) and optionally
// marks the page dirty.
func (bp *BufferPool) UnpinPage(pageID uint32, dirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, ok := bp.pages[pageID]
	if !ok {
		return fmt.Errorf("unpin: page %d not in buffer pool", pageID)
	}
	if pg.PinCount > 0 {
		pg.PinCount--
	}
	if dirty {
		pg.IsDirty = true
	}
	return nil
}

// FlushPage writes one cached page through the WAL if dirty.
func (bp *BufferPool) FlushPage(pageID uint32) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	pg, ok := bp.pages[pageID]
	if !ok {
		return fmt.Errorf("flush: page %d not in buffer pool", pageID)
	}
	return bp.fileManager.WritePageWithWAL(pg)
}

// FlushAll writes every dirty cached page to disk. Pages stay cached.
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, pageID := range bp.accessOrder {
		pg := bp.pages[pageID]
		if !pg.IsDirty {
			continue
		}
		if err := bp.fileManager.WritePageWithWAL(pg); err != nil {
			return fmt.Errorf("flush page %d: %w", pageID, err)
		}
	}
	return nil
}

// Clear flushes all dirty pages and empties the pool.
func (bp *BufferPool) Clear() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, pageID := range bp.accessOrder {
		pg := bp.pages[pageID]
		if pg.IsDirty {
			if err := bp.fileManager.WritePageWithWAL(pg); err != nil {
				return fmt.Errorf("flush page %d: %w", pageID, err)
			}
		}
	}
	bp.pages = make(map[uint32]*page.Page, bp.capacity)
	bp.accessOrder = bp.accessOrder[:0]
	return nil
}

// admit adds a page to the pool, evicting first if at capacity.
// Caller holds bp.mu.
func (bp *BufferPool) admit(pg *page.Page) error {
	if err := bp.evictIfNeeded(); err != nil {
		return err
	}
	bp.pages[pg.ID] = pg
	bp.accessOrder = append(bp.accessOrder, pg.ID)
	return nil
}

// evictIfNeeded scans from the LRU end for an unpinned victim, flushes
// it if dirty, and drops it. Fails when every cached page is pinned.
func (bp *BufferPool) evictIfNeeded() error {
	if len(bp.pages) < bp.capacity {
		return nil
	}

	for i, pageID := range bp.accessOrder {
		victim := bp.pages[pageID]
		if victim.PinCount > 0 {
			continue
		}
		if victim.IsDirty {
			if err := bp.fileManager.WritePageWithWAL(victim); err != nil {
				return fmt.Errorf("flush eviction victim %d: %w", pageID, err)
			}
		}
		delete(bp.pages, pageID)
		bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
		bp.evictions++
		bp.logger.Debug("evicted page", "page_id", pageID)
		return nil
	}

	return fmt.Errorf("buffer pool full: all %d pages are pinned", len(bp.pages))
}

// touch moves pageID to the most-recently-used end. Caller holds bp.mu.
func (bp *BufferPool) touch(pageID uint32) {
	for i, id := range bp.accessOrder {
		if id == pageID {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			break
		}
	}
	bp.accessOrder = append(bp.accessOrder, pageID)
}

// Contains reports whether a page is currently cached, without
// touching the recency order.
func (bp *BufferPool) Contains(pageID uint32) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	_, ok := bp.pages[pageID]
	return ok
}

// GetStats returns current buffer pool statistics.
func (bp *BufferPool) GetStats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	stats := Stats{
		TotalPages: len(bp.pages),
		Capacity:   bp.capacity,
		Hits:       bp.hits,
		Misses:     bp.misses,
		Evictions:  bp.evictions,
	}
	for _, pg := range bp.pages {
		if pg.PinCount > 0 {
			stats.PinnedPages++
		}
		if pg.IsDirty {
			stats.DirtyPages++
		}
	}
	if total := bp.hits + bp.misses; total > 0 {
		stats.HitRate = float64(bp.hits) / float64(total)
	}
	return stats
}
