package catalog

import (
	"fmt"
	"log/slog"

	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/page"
)

/*
The catalog persists table schemas in a chain of CATALOG pages rooted
at page 1. Each catalog page carries, after the generic page header:

	Offset  Size  Field
	────────────────────────────────────────
	13      2     TableCount    uint16 — meaningful on the root only
	15      4     NextOverflow  uint32 — next catalog page, 0 = none
	19      160   SlotDirectory — 20 slots × (offset:u32, length:u32)

Schema payloads land at the free-space cursor, past the fixed slot
directory. An offset of 0 marks an empty slot. The full catalog is
mirrored into in-memory maps at startup; reads never touch disk after
that.
*/

type location struct {
	pageID uint32
	slotID int
}

type Catalog struct {
	fileManager *filemanager.FileManager
	logger      *slog.Logger

	tables    map[string]*TableSchema
	locations map[string]location
}

// Info is the admin-facing catalog summary.
type Info struct {
	TableCount   int      `json:"table_count"`
	Tables       []string `json:"tables"`
	CatalogPages int      `json:"catalog_pages"`
	MemorySize   int      `json:"memory_size"`
}

func New(fm *filemanager.FileManager, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		fileManager: fm,
		logger:      logger.With("component", "catalog"),
		tables:      make(map[string]*TableSchema),
		locations:   make(map[string]location),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return c, nil
}

func slotDirOffset(slotID int) int {
	return filemanager.CatalogSlotDirOffset + slotID*filemanager.CatalogSlotSize
}

// load walks the catalog page chain and rebuilds the in-memory maps.
func (c *Catalog) load() error {
	root, err := c.fileManager.ReadPage(filemanager.CatalogPageID)
	if err != nil {
		return err
	}
	if root.Type() != page.TypeCatalog {
		c.logger.Warn("page 1 is not a catalog page")
		return nil
	}

	tableCount, err := root.ReadShort(filemanager.CatalogCountOffset)
	if err != nil {
		return err
	}

	current := root
	currentID := uint32(filemanager.CatalogPageID)
	read := 0

	for current != nil && read < int(tableCount) {
		for slotID := 0; slotID < filemanager.CatalogSlotCount && read < int(tableCount); slotID++ {
			entryOffset, err := current.ReadInt(slotDirOffset(slotID))
			if err != nil {
				return err
			}
			if entryOffset == 0 {
				continue
			}
			entryLength, err := current.ReadInt(slotDirOffset(slotID) + 4)
			if err != nil {
				return err
			}
			data, err := current.ReadBytes(int(entryOffset), int(entryLength))
			if err != nil {
				return err
			}
			schema, err := DeserializeTableSchema(data)
			if err != nil {
				return fmt.Errorf("page %d slot %d: %w", currentID, slotID, err)
			}
			c.tables[schema.Name] = schema
			c.locations[schema.Name] = location{pageID: currentID, slotID: slotID}
			read++
		}

		nextOverflow, err := current.ReadInt(filemanager.CatalogOverflowOffset)
		if err != nil {
			return err
		}
		if nextOverflow == 0 {
			break
		}
		current, err = c.fileManager.ReadPage(nextOverflow)
		if err != nil {
			return err
		}
		currentID = nextOverflow
	}

	c.logger.Info("catalog loaded", "tables", len(c.tables))
	return nil
}

// CreateTable persists a schema into the catalog chain. Fails when the
// table name already exists or no catalog space can be allocated.
func (c *Catalog) CreateTable(schema *TableSchema) error {
	if _, exists := c.tables[schema.Name]; exists {
		return fmt.Errorf("table '%s' already exists", schema.Name)
	}

	data := schema.Serialize()
	pg, slotID, offset, err := c.findSpace(len(data))
	if err != nil {
		return err
	}

	if err := pg.WriteBytes(offset, data); err != nil {
		return err
	}
	if err := pg.WriteInt(slotDirOffset(slotID), uint32(offset)); err != nil {
		return err
	}
	if err := pg.WriteInt(slotDirOffset(slotID)+4, uint32(len(data))); err != nil {
		return err
	}
	if end := offset + len(data); end > int(pg.FreeStart()) {
		pg.SetFreeStart(uint16(end))
	}
	if err := c.fileManager.WritePageWithWAL(pg); err != nil {
		return err
	}
	if err := c.bumpTableCount(1); err != nil {
		return err
	}

	c.tables[schema.Name] = schema
	c.locations[schema.Name] = location{pageID: pg.ID, slotID: slotID}
	c.logger.Info("created table", "table", schema.Name, "columns", len(schema.Columns))
	return nil
}

// findSpace walks the chain for a page with an empty slot and room for
// size bytes. Allocates and links a fresh overflow page when the chain
// is exhausted.
func (c *Catalog) findSpace(size int) (*page.Page, int, int, error) {
	currentID := uint32(filemanager.CatalogPageID)

	for {
		pg, err := c.fileManager.ReadPage(currentID)
		if err != nil {
			return nil, 0, 0, err
		}
		if pg.Type() != page.TypeCatalog {
			return nil, 0, 0, fmt.Errorf("page %d in catalog chain is not a catalog page", currentID)
		}

		for slotID := 0; slotID < filemanager.CatalogSlotCount; slotID++ {
			entryOffset, err := pg.ReadInt(slotDirOffset(slotID))
			if err != nil {
				return nil, 0, 0, err
			}
			if entryOffset != 0 {
				continue
			}
			freeStart := int(pg.FreeStart())
			if freeStart+size < page.PageSize {
				return pg, slotID, freeStart, nil
			}
			break // slots free but no byte space, chain onward
		}

		nextOverflow, err := pg.ReadInt(filemanager.CatalogOverflowOffset)
		if err != nil {
			return nil, 0, 0, err
		}
		if nextOverflow != 0 {
			currentID = nextOverflow
			continue
		}

		// end of chain: allocate a new overflow page mirroring the
		// root catalog layout.
		newPage, err := c.fileManager.AllocatePage()
		if err != nil {
			return nil, 0, 0, fmt.Errorf("allocate catalog overflow page: %w", err)
		}
		newPage.SetType(page.TypeCatalog)
		if err := newPage.WriteShort(filemanager.CatalogCountOffset, 0); err != nil {
			return nil, 0, 0, err
		}
		if err := newPage.WriteInt(filemanager.CatalogOverflowOffset, 0); err != nil {
			return nil, 0, 0, err
		}
		freeStart := filemanager.CatalogSlotDirOffset + filemanager.CatalogSlotCount*filemanager.CatalogSlotSize
		newPage.SetFreeStart(uint16(freeStart))

		if err := pg.WriteInt(filemanager.CatalogOverflowOffset, newPage.ID); err != nil {
			return nil, 0, 0, err
		}
		if err := c.fileManager.WritePageWithWAL(pg); err != nil {
			return nil, 0, 0, err
		}
		if err := c.fileManager.WritePageWithWAL(newPage); err != nil {
			return nil, 0, 0, err
		}
		c.logger.Debug("linked catalog overflow page", "page_id", newPage.ID)

		return c.reloadForWrite(newPage.ID, freeStart, size)
	}
}

// reloadForWrite re-reads a freshly written overflow page so the caller
// mutates the persisted image, not a stale copy.
func (c *Catalog) reloadForWrite(pageID uint32, freeStart, size int) (*page.Page, int, int, error) {
	if freeStart+size >= page.PageSize {
		return nil, 0, 0, fmt.Errorf("schema of %d bytes does not fit in an empty catalog page", size)
	}
	pg, err := c.fileManager.ReadPage(pageID)
	if err != nil {
		return nil, 0, 0, err
	}
	return pg, 0, freeStart, nil
}

func (c *Catalog) bumpTableCount(delta int) error {
	root, err := c.fileManager.ReadPage(filemanager.CatalogPageID)
	if err != nil {
		return err
	}
	count, err := root.ReadShort(filemanager.CatalogCountOffset)
	if err != nil {
		return err
	}
	newCount := int(count) + delta
	if newCount < 0 {
		newCount = 0
	}
	if err := root.WriteShort(filemanager.CatalogCountOffset, uint16(newCount)); err != nil {
		return err
	}
	return c.fileManager.WritePageWithWAL(root)
}

// DropTable removes the schema from the catalog. The table's data
// pages are not reclaimed here.
func (c *Catalog) DropTable(tableName string) error {
	loc, ok := c.locations[tableName]
	if !ok {
		return fmt.Errorf("table '%s' not found", tableName)
	}

	pg, err := c.fileManager.ReadPage(loc.pageID)
	if err != nil {
		return err
	}
	if err := pg.WriteInt(slotDirOffset(loc.slotID), 0); err != nil {
		return err
	}
	if err := pg.WriteInt(slotDirOffset(loc.slotID)+4, 0); err != nil {
		return err
	}
	if err := c.fileManager.WritePageWithWAL(pg); err != nil {
		return err
	}
	if err := c.bumpTableCount(-1); err != nil {
		return err
	}

	delete(c.tables, tableName)
	delete(c.locations, tableName)
	c.logger.Info("dropped table", "table", tableName)
	return nil
}

// GetTable returns the schema for a table, or nil when unknown.
func (c *Catalog) GetTable(tableName string) *TableSchema {
	return c.tables[tableName]
}

func (c *Catalog) TableExists(tableName string) bool {
	_, ok := c.tables[tableName]
	return ok
}

// ListTables returns all table names in no particular order.
func (c *Catalog) ListTables() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	return names
}

// DescribeTable renders a table's schema, or an error when unknown.
func (c *Catalog) DescribeTable(tableName string) (string, error) {
	schema := c.GetTable(tableName)
	if schema == nil {
		return "", fmt.Errorf("table '%s' not found", tableName)
	}
	return schema.String(), nil
}

func (c *Catalog) GetCatalogInfo() Info {
	info := Info{
		TableCount:   len(c.tables),
		Tables:       c.ListTables(),
		CatalogPages: c.countCatalogPages(),
	}
	for _, schema := range c.tables {
		info.MemorySize += schema.SerializedSize()
	}
	return info
}

func (c *Catalog) countCatalogPages() int {
	count := 1
	currentID := uint32(filemanager.CatalogPageID)
	for {
		pg, err := c.fileManager.ReadPage(currentID)
		if err != nil {
			break
		}
		next, err := pg.ReadInt(filemanager.CatalogOverflowOffset)
		if err != nil || next == 0 {
			break
		}
		count++
		currentID = next
	}
	return count
}
