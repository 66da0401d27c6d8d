package filemanager

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"pesadb/storage_engine/page"
)

/*
FileManager owns the database file and its write-ahead log. Every
durable page mutation goes through WritePageWithWAL, which logs the
page's pre- and post-image (fsynced) before the page itself is
overwritten. That ordering is the crash-safety contract: the previous
page state is always on disk in the WAL before it is destroyed in the
database file.

Database header page (page 0) layout, after the generic page header:

	Offset  Size  Field
	─────────────────────────────────────
	13      16    Magic         "PESA_DB_v1.0", length-prefixed
	29      4     Version       uint32
	33      4     PageCount     uint32
	37      4     FreeListHead  uint32 — 0 means empty
*/

const (
	PageSize = page.PageSize

	HeaderPageID       = 0
	CatalogPageID      = 1
	IndexCatalogPageID = 2

	Magic           = "PESA_DB_v1.0"
	MagicFieldWidth = 16

	MagicOffset        = page.HeaderSize
	VersionOffset      = MagicOffset + MagicFieldWidth
	PageCountOffset    = VersionOffset + 4
	FreeListHeadOffset = PageCountOffset + 4

	// catalog page header: table count, then the next-overflow link
	CatalogCountOffset    = page.HeaderSize
	CatalogOverflowOffset = CatalogCountOffset + 2
	CatalogSlotCount      = 20
	CatalogSlotDirOffset  = CatalogOverflowOffset + 4
	CatalogSlotSize       = 8
)

type FileManager struct {
	dbPath  string
	walPath string
	logger  *slog.Logger

	mu sync.Mutex
}

// DatabaseInfo is the admin-facing snapshot returned by GetDatabaseInfo.
type DatabaseInfo struct {
	FileSize     int64  `json:"file_size"`
	PageSize     int    `json:"page_size"`
	TotalPages   uint32 `json:"total_pages"`
	FreeListHead uint32 `json:"free_list_head"`
	WALSize      int64  `json:"wal_size"`
	Magic        string `json:"magic_string"`
}

func New(dbPath string, logger *slog.Logger) (*FileManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return &FileManager{
		dbPath:  dbPath,
		walPath: dbPath + ".wal",
		logger:  logger.With("component", "filemanager"),
	}, nil
}

func (fm *FileManager) Path() string { return fm.dbPath }

func (fm *FileManager) Exists() bool {
	_, err := os.Stat(fm.dbPath)
	return err == nil
}

// CreateDatabase initializes a fresh database file: header page,
// catalog root page, index-catalog page, and an empty WAL.
func (fm *FileManager) CreateDatabase() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.Exists() {
		return fmt.Errorf("database %s already exists", fm.dbPath)
	}

	f, err := os.OpenFile(fm.dbPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create database file: %w", err)
	}
	defer f.Close()

	header, err := fm.buildHeaderPage()
	if err != nil {
		return err
	}
	catalog, err := fm.buildCatalogPage()
	if err != nil {
		return err
	}
	indexCatalog := page.New(IndexCatalogPageID, page.TypeIndex)
	indexCatalog.UpdateChecksum()

	for _, p := range []*page.Page{header, catalog, indexCatalog} {
		if _, err := f.Write(p.Data); err != nil {
			return fmt.Errorf("write initial page %d: %w", p.ID, err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync database file: %w", err)
	}

	if err := os.WriteFile(fm.walPath, nil, 0644); err != nil {
		return fmt.Errorf("initialize wal: %w", err)
	}

	fm.logger.Info("created database", "path", fm.dbPath)
	return nil
}

func (fm *FileManager) buildHeaderPage() (*page.Page, error) {
	header := page.New(HeaderPageID, page.TypeHeader)

	if err := header.WriteString(MagicOffset, Magic, MagicFieldWidth); err != nil {
		return nil, err
	}
	if err := header.WriteInt(VersionOffset, 1); err != nil {
		return nil, err
	}
	// header + catalog + index-catalog
	if err := header.WriteInt(PageCountOffset, 3); err != nil {
		return nil, err
	}
	if err := header.WriteInt(FreeListHeadOffset, 0); err != nil {
		return nil, err
	}
	header.UpdateChecksum()
	return header, nil
}

func (fm *FileManager) buildCatalogPage() (*page.Page, error) {
	catalog := page.New(CatalogPageID, page.TypeCatalog)

	if err := catalog.WriteShort(CatalogCountOffset, 0); err != nil {
		return nil, err
	}
	if err := catalog.WriteInt(CatalogOverflowOffset, 0); err != nil {
		return nil, err
	}
	// reserve the fixed slot directory so schema payloads land after it
	catalog.SetFreeStart(uint16(CatalogSlotDirOffset + CatalogSlotCount*CatalogSlotSize))
	catalog.UpdateChecksum()
	return catalog, nil
}

// ReadPage reads one page by ID. Short reads at end of file are padded
// with zeros. A checksum mismatch is logged and the page is still
// returned; callers get best-effort data rather than a hard failure.
func (fm *FileManager) ReadPage(pageID uint32) (*page.Page, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.readPageLocked(pageID)
}

func (fm *FileManager) readPageLocked(pageID uint32) (*page.Page, error) {
	f, err := os.Open(fm.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat database file: %w", err)
	}

	offset := int64(pageID) * PageSize
	if offset >= stat.Size() {
		return nil, fmt.Errorf("page %d beyond end of file (size %d)", pageID, stat.Size())
	}

	buf := make([]byte, PageSize)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read page %d: %w", pageID, err)
	}
	_ = n // short reads stay zero-padded

	p := page.FromBytes(pageID, buf)
	if p.Type() != page.TypeFree && !p.ValidateChecksum() {
		fm.logger.Warn("page checksum mismatch", "page_id", pageID)
	}
	return p, nil
}

// WritePageWithWAL persists a dirty page with WAL protection: the
// current on-disk image and the new image are appended to the log and
// fsynced before the page itself is overwritten. Bumps the page LSN.
func (fm *FileManager) WritePageWithWAL(p *page.Page) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.writePageWithWALLocked(p)
}

func (fm *FileManager) writePageWithWALLocked(p *page.Page) error {
	if !p.IsDirty {
		return nil
	}

	oldData := fm.rawPageImage(p.ID)

	p.SetLSN(p.LSN() + 1)
	p.UpdateChecksum()

	if err := fm.appendWAL(encodeWALRecord(p.ID, oldData, p.Data)); err != nil {
		return err
	}
	if err := fm.writePageLocked(p); err != nil {
		return err
	}
	return nil
}

// rawPageImage fetches the current on-disk bytes for the WAL pre-image.
// A page past end of file (fresh allocation) yields an empty pre-image.
func (fm *FileManager) rawPageImage(pageID uint32) []byte {
	f, err := os.Open(fm.dbPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, PageSize)
	n, err := f.ReadAt(buf, int64(pageID)*PageSize)
	if err != nil && err != io.EOF {
		return nil
	}
	return buf[:n]
}

func (fm *FileManager) writePageLocked(p *page.Page) error {
	f, err := os.OpenFile(fm.dbPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open database file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteAt(p.Data, int64(p.ID)*PageSize); err != nil {
		return fmt.Errorf("write page %d: %w", p.ID, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync page %d: %w", p.ID, err)
	}
	p.IsDirty = false
	return nil
}

// AllocatePage returns a fresh TABLE page, reusing the free-list head
// when one exists and extending the file otherwise. The header update
// is WAL-protected on both paths.
func (fm *FileManager) AllocatePage() (*page.Page, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	header, err := fm.readPageLocked(HeaderPageID)
	if err != nil {
		return nil, err
	}
	freeHead, err := header.ReadInt(FreeListHeadOffset)
	if err != nil {
		return nil, err
	}

	if freeHead != 0 {
		freePage, err := fm.readPageLocked(freeHead)
		if err != nil {
			return nil, err
		}
		// first field of a FREE page is the next free-list link
		nextFree, err := freePage.ReadInt(page.HeaderSize)
		if err != nil {
			return nil, err
		}

		if err := header.WriteInt(FreeListHeadOffset, nextFree); err != nil {
			return nil, err
		}
		if err := fm.writePageWithWALLocked(header); err != nil {
			return nil, err
		}

		freePage.Reset(page.TypeTable)
		fm.logger.Debug("reused free page", "page_id", freePage.ID)
		return freePage, nil
	}

	pageCount, err := header.ReadInt(PageCountOffset)
	if err != nil {
		return nil, err
	}
	if err := header.WriteInt(PageCountOffset, pageCount+1); err != nil {
		return nil, err
	}
	if err := fm.writePageWithWALLocked(header); err != nil {
		return nil, err
	}

	newPage := page.New(pageCount, page.TypeTable)
	newPage.UpdateChecksum()
	f, err := os.OpenFile(fm.dbPath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteAt(newPage.Data, int64(newPage.ID)*PageSize); err != nil {
		return nil, fmt.Errorf("extend file with page %d: %w", newPage.ID, err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync new page %d: %w", newPage.ID, err)
	}

	fm.logger.Debug("allocated page", "page_id", newPage.ID)
	return newPage, nil
}

// DeallocatePage converts a page to FREE and pushes it onto the
// free list. System pages (header, catalog, index-catalog) are
// never deallocated.
func (fm *FileManager) DeallocatePage(pageID uint32) error {
	if pageID <= IndexCatalogPageID {
		return fmt.Errorf("cannot deallocate system page %d", pageID)
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	header, err := fm.readPageLocked(HeaderPageID)
	if err != nil {
		return err
	}
	oldFreeHead, err := header.ReadInt(FreeListHeadOffset)
	if err != nil {
		return err
	}

	p, err := fm.readPageLocked(pageID)
	if err != nil {
		return err
	}
	p.Reset(page.TypeFree)
	if err := p.WriteInt(page.HeaderSize, oldFreeHead); err != nil {
		return err
	}
	if err := fm.writePageWithWALLocked(p); err != nil {
		return err
	}

	if err := header.WriteInt(FreeListHeadOffset, pageID); err != nil {
		return err
	}
	return fm.writePageWithWALLocked(header)
}

// PageCount reads the total page count from the header page.
func (fm *FileManager) PageCount() (uint32, error) {
	header, err := fm.ReadPage(HeaderPageID)
	if err != nil {
		return 0, err
	}
	return header.ReadInt(PageCountOffset)
}

func (fm *FileManager) GetDatabaseInfo() (*DatabaseInfo, error) {
	stat, err := os.Stat(fm.dbPath)
	if err != nil {
		return nil, fmt.Errorf("database does not exist: %w", err)
	}

	header, err := fm.ReadPage(HeaderPageID)
	if err != nil {
		return nil, err
	}
	totalPages, err := header.ReadInt(PageCountOffset)
	if err != nil {
		return nil, err
	}
	freeHead, err := header.ReadInt(FreeListHeadOffset)
	if err != nil {
		return nil, err
	}
	magic, err := header.ReadString(MagicOffset)
	if err != nil {
		return nil, err
	}

	return &DatabaseInfo{
		FileSize:     stat.Size(),
		PageSize:     PageSize,
		TotalPages:   totalPages,
		FreeListHead: freeHead,
		WALSize:      fm.WALSize(),
		Magic:        magic,
	}, nil
}

func (fm *FileManager) Close() error { return nil }
