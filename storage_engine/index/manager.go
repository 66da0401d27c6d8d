package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"

	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/page"
	"pesadb/types"
)

/*
IndexManager tracks every B+Tree in the database through the
index-catalog page (fixed page ID 2). Each catalog entry is a fixed
138-byte record:

	Offset  Size  Field
	──────────────────────────────────
	0       4     IndexID    uint32
	4       64    TableName  zero-padded
	68      64    ColumnName zero-padded
	132     1     IsPrimary
	133     1     IsUnique
	134     4     RootPageID uint32

The entry count lives at offset 13 of the page; entries follow from
offset 15. Root page IDs are rewritten whenever a tree grows a level,
so a reopened database descends from the right page.
*/

const (
	indexEntrySize   = 138
	indexCountOffset = page.HeaderSize
	indexFirstEntry  = indexCountOffset + 2
)

type IndexEntry struct {
	IndexID    uint32
	TableName  string
	ColumnName string
	IsPrimary  bool
	IsUnique   bool
	RootPageID uint32
}

func (e *IndexEntry) Name() string {
	return e.TableName + "." + e.ColumnName
}

func (e *IndexEntry) serialize() []byte {
	buf := make([]byte, indexEntrySize)
	binary.BigEndian.PutUint32(buf[0:], e.IndexID)
	copy(buf[4:68], e.TableName)
	copy(buf[68:132], e.ColumnName)
	if e.IsPrimary {
		buf[132] = 1
	}
	if e.IsUnique {
		buf[133] = 1
	}
	binary.BigEndian.PutUint32(buf[134:], e.RootPageID)
	return buf
}

func deserializeIndexEntry(data []byte) (*IndexEntry, error) {
	if len(data) < indexEntrySize {
		return nil, fmt.Errorf("index entry truncated at %d bytes", len(data))
	}
	return &IndexEntry{
		IndexID:    binary.BigEndian.Uint32(data[0:]),
		TableName:  string(bytes.TrimRight(data[4:68], "\x00")),
		ColumnName: string(bytes.TrimRight(data[68:132], "\x00")),
		IsPrimary:  data[132] != 0,
		IsUnique:   data[133] != 0,
		RootPageID: binary.BigEndian.Uint32(data[134:]),
	}, nil
}

type IndexManager struct {
	fileManager *filemanager.FileManager
	logger      *slog.Logger

	trees   map[string]*BPlusTree
	entries map[string]*IndexEntry
}

func NewIndexManager(fm *filemanager.FileManager, logger *slog.Logger) (*IndexManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	im := &IndexManager{
		fileManager: fm,
		logger:      logger.With("component", "indexmanager"),
		trees:       make(map[string]*BPlusTree),
		entries:     make(map[string]*IndexEntry),
	}
	if err := im.loadCatalog(); err != nil {
		return nil, fmt.Errorf("load index catalog: %w", err)
	}
	return im, nil
}

func (im *IndexManager) loadCatalog() error {
	pg, err := im.fileManager.ReadPage(filemanager.IndexCatalogPageID)
	if err != nil {
		return err
	}
	if pg.Type() != page.TypeIndex {
		im.logger.Warn("page 2 is not an index catalog page")
		return nil
	}

	count, err := pg.ReadShort(indexCountOffset)
	if err != nil {
		return err
	}
	offset := indexFirstEntry
	for i := 0; i < int(count); i++ {
		if offset+indexEntrySize > page.PageSize {
			break
		}
		data, err := pg.ReadBytes(offset, indexEntrySize)
		if err != nil {
			return err
		}
		entry, err := deserializeIndexEntry(data)
		if err != nil {
			return err
		}
		tree, err := NewBPlusTree(im.fileManager, entry.RootPageID, DefaultOrder, im.logger)
		if err != nil {
			return fmt.Errorf("open index %s: %w", entry.Name(), err)
		}
		im.trees[entry.Name()] = tree
		im.entries[entry.Name()] = entry
		offset += indexEntrySize
	}

	im.logger.Info("index catalog loaded", "indexes", len(im.trees))
	return nil
}

// persistCatalog rewrites the index-catalog page from the in-memory
// entries, in name order so the layout is deterministic.
func (im *IndexManager) persistCatalog() error {
	pg, err := im.fileManager.ReadPage(filemanager.IndexCatalogPageID)
	if err != nil {
		return err
	}
	pg.SetType(page.TypeIndex)
	if err := pg.WriteShort(indexCountOffset, uint16(len(im.entries))); err != nil {
		return err
	}

	names := make([]string, 0, len(im.entries))
	for name := range im.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	offset := indexFirstEntry
	for _, name := range names {
		if offset+indexEntrySize > page.PageSize {
			im.logger.Warn("index catalog page full", "dropped_after", offset)
			break
		}
		if err := pg.WriteBytes(offset, im.entries[name].serialize()); err != nil {
			return err
		}
		offset += indexEntrySize
	}
	return im.fileManager.WritePageWithWAL(pg)
}

// CreateIndex builds an empty B+Tree for table.column and records it
// in the index catalog.
func (im *IndexManager) CreateIndex(tableName, columnName string, isPrimary, isUnique bool) error {
	name := tableName + "." + columnName
	if _, exists := im.trees[name]; exists {
		return fmt.Errorf("index '%s' already exists", name)
	}

	tree, err := NewBPlusTree(im.fileManager, 0, DefaultOrder, im.logger)
	if err != nil {
		return fmt.Errorf("create index '%s': %w", name, err)
	}
	entry := &IndexEntry{
		IndexID:    uint32(len(im.entries) + 1),
		TableName:  tableName,
		ColumnName: columnName,
		IsPrimary:  isPrimary,
		IsUnique:   isUnique,
		RootPageID: tree.RootPageID(),
	}
	im.trees[name] = tree
	im.entries[name] = entry

	if err := im.persistCatalog(); err != nil {
		return err
	}
	im.logger.Info("created index", "index", name, "root_page", tree.RootPageID())
	return nil
}

// DropIndex removes an index from the catalog. The tree's pages are
// not reclaimed.
func (im *IndexManager) DropIndex(tableName, columnName string) error {
	name := tableName + "." + columnName
	if _, exists := im.trees[name]; !exists {
		return fmt.Errorf("index '%s' not found", name)
	}
	delete(im.trees, name)
	delete(im.entries, name)
	return im.persistCatalog()
}

func (im *IndexManager) HasIndex(tableName, columnName string) bool {
	_, ok := im.trees[tableName+"."+columnName]
	return ok
}

func (im *IndexManager) GetIndex(tableName, columnName string) *BPlusTree {
	return im.trees[tableName+"."+columnName]
}

// Insert adds a key to the column's index if one exists. Returns false
// on a duplicate key, which is how uniqueness surfaces to callers.
func (im *IndexManager) Insert(tableName, columnName string, key types.Value, rowLocator uint32) (bool, error) {
	name := tableName + "." + columnName
	tree, ok := im.trees[name]
	if !ok {
		return true, nil
	}
	oldRoot := tree.RootPageID()
	inserted, err := tree.Insert(key, rowLocator)
	if err != nil {
		return false, err
	}
	if tree.RootPageID() != oldRoot {
		im.entries[name].RootPageID = tree.RootPageID()
		if err := im.persistCatalog(); err != nil {
			return false, err
		}
	}
	return inserted, nil
}

// Delete drops a key from the column's index if one exists.
func (im *IndexManager) Delete(tableName, columnName string, key types.Value) error {
	tree, ok := im.trees[tableName+"."+columnName]
	if !ok {
		return nil
	}
	_, err := tree.Delete(key)
	return err
}

// Lookup is a point query against the column's index.
func (im *IndexManager) Lookup(tableName, columnName string, key types.Value) (uint32, bool, error) {
	tree, ok := im.trees[tableName+"."+columnName]
	if !ok {
		return 0, false, nil
	}
	return tree.Search(key)
}

// RangeLookup returns row locators for keys in [start, end].
func (im *IndexManager) RangeLookup(tableName, columnName string, start, end types.Value) ([]uint32, error) {
	tree, ok := im.trees[tableName+"."+columnName]
	if !ok {
		return nil, nil
	}
	return tree.RangeSearch(start, end)
}

// GetTableIndexes lists the catalog entries for one table.
func (im *IndexManager) GetTableIndexes(tableName string) []*IndexEntry {
	var out []*IndexEntry
	for _, entry := range im.entries {
		if entry.TableName == tableName {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IndexID < out[j].IndexID })
	return out
}

// GetIndexInfo reports index manager statistics.
func (im *IndexManager) GetIndexInfo() map[string]any {
	names := make([]string, 0, len(im.trees))
	for name := range im.trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return map[string]any{
		"total_indexes": len(im.trees),
		"indexes":       names,
	}
}
