package executor

import (
	"fmt"

	"pesadb/catalog"
	"pesadb/query_planner"
	"pesadb/storage_engine/page"
	"pesadb/types"
)

// scanPageRows walks a table page's length-prefixed row region. A
// malformed prefix or a row running past free_start ends the scan.
func (e *Executor) scanPageRows(pageID uint32, schema *catalog.TableSchema) ([]rowSlot, error) {
	pg, err := e.bufferPool.GetPage(pageID)
	if err != nil {
		return nil, err
	}

	freeStart := int(pg.FreeStart())
	offset := rowRegionStart
	rowID := 0

	var slots []rowSlot
	for offset+rowLenPrefix <= freeStart {
		rowSize, err := pg.ReadInt(offset)
		if err != nil {
			break
		}
		dataStart := offset + rowLenPrefix
		if dataStart+int(rowSize) > freeStart {
			break
		}
		payload, err := pg.ReadBytes(dataStart, int(rowSize))
		if err != nil {
			break
		}
		row, err := DeserializeRow(payload, schema, rowID)
		if err != nil {
			return nil, fmt.Errorf("page %d row %d: %w", pageID, rowID, err)
		}
		slots = append(slots, rowSlot{row: row, offset: offset, size: rowLenPrefix + int(rowSize)})
		offset += rowLenPrefix + int(rowSize)
		rowID++
	}
	return slots, nil
}

// loadRows materializes all rows of a table from the given pages, with
// RowIDs unique across the whole scan.
func (e *Executor) loadRows(pageIDs []uint32, schema *catalog.TableSchema) ([]*Row, error) {
	var rows []*Row
	for _, pageID := range pageIDs {
		slots, err := e.scanPageRows(pageID, schema)
		if err != nil {
			return nil, err
		}
		for _, slot := range slots {
			slot.row.RowID = len(rows)
			rows = append(rows, slot.row)
		}
	}
	return rows, nil
}

// rowMatches folds the flattened filter list left to right: each
// condition combines with the running result through its connector.
func rowMatches(row *Row, filters []planner.FilterCondition) bool {
	if len(filters) == 0 {
		return true
	}
	result := false
	for i, f := range filters {
		match := f.ColumnIndex < len(row.Values) &&
			row.Values[f.ColumnIndex].Compare(f.Value, f.Operator)
		if i == 0 {
			result = match
		} else if f.Connector == "OR" {
			result = result || match
		} else {
			result = result && match
		}
	}
	return result
}

// findFreePage returns a page of the table with room for size bytes,
// or allocates and initializes a fresh one.
func (e *Executor) findFreePage(tableName string, size int) (uint32, error) {
	pages, err := e.findTablePages(tableName)
	if err != nil {
		return 0, err
	}
	if len(pages) > 0 {
		last := pages[len(pages)-1]
		pg, err := e.bufferPool.GetPage(last)
		if err != nil {
			return 0, err
		}
		if int(pg.FreeStart())+size < page.PageSize {
			return last, nil
		}
	}

	pg, err := e.fileManager.AllocatePage()
	if err != nil {
		return 0, err
	}
	if err := pg.WriteString(tableNameOffset, tableName, tableNameWidth); err != nil {
		return 0, err
	}
	pg.SetFreeStart(rowRegionStart)
	if err := e.fileManager.WritePageWithWAL(pg); err != nil {
		return 0, err
	}
	return pg.ID, nil
}

// insertRow appends a serialized row to the table and maintains every
// index on it. Constraint validation happens before this is called.
func (e *Executor) insertRow(schema *catalog.TableSchema, row *Row) (uint32, error) {
	payload := row.Serialize()
	total := rowLenPrefix + len(payload)
	if total > page.PageSize-rowRegionStart {
		return 0, fmt.Errorf("row of %d bytes does not fit in a page", len(payload))
	}

	pageID, err := e.findFreePage(schema.Name, total)
	if err != nil {
		return 0, err
	}
	pg, err := e.bufferPool.GetPage(pageID)
	if err != nil {
		return 0, err
	}

	offset := int(pg.FreeStart())
	if err := pg.WriteInt(offset, uint32(len(payload))); err != nil {
		return 0, err
	}
	if err := pg.WriteBytes(offset+rowLenPrefix, payload); err != nil {
		return 0, err
	}
	pg.SetFreeStart(uint16(offset + total))

	if err := e.fileManager.WritePageWithWAL(pg); err != nil {
		return 0, err
	}

	if err := e.updateIndexesOnInsert(schema, row, pageID); err != nil {
		return 0, err
	}
	return pageID, nil
}

// updateIndexesOnInsert registers the row's indexed keys. NULL keys are
// skipped: uniqueness over NULL is constraint-layer business and the
// tree holds each key once.
func (e *Executor) updateIndexesOnInsert(schema *catalog.TableSchema, row *Row, pageID uint32) error {
	for _, idx := range e.indexes.GetTableIndexes(schema.Name) {
		colIdx := schema.ColumnIndex(idx.ColumnName)
		if colIdx < 0 || colIdx >= len(row.Values) {
			continue
		}
		key := row.Values[colIdx]
		if key.IsNull() {
			continue
		}
		ok, err := e.indexes.Insert(schema.Name, idx.ColumnName, key, pageID)
		if err != nil {
			return fmt.Errorf("index %s.%s: %w", schema.Name, idx.ColumnName, err)
		}
		if !ok {
			return fmt.Errorf("index %s.%s rejected duplicate key '%s'",
				schema.Name, idx.ColumnName, key.Display())
		}
	}
	return nil
}

func (e *Executor) removeIndexEntries(schema *catalog.TableSchema, row *Row) {
	for _, idx := range e.indexes.GetTableIndexes(schema.Name) {
		colIdx := schema.ColumnIndex(idx.ColumnName)
		if colIdx < 0 || colIdx >= len(row.Values) {
			continue
		}
		key := row.Values[colIdx]
		if key.IsNull() {
			continue
		}
		if err := e.indexes.Delete(schema.Name, idx.ColumnName, key); err != nil {
			e.logger.Warn("index entry removal failed",
				"table", schema.Name, "column", idx.ColumnName, "error", err)
		}
	}
}

// rewritePageRows replaces a page's entire row region with the given
// rows, reclaiming the space of anything no longer listed.
func (e *Executor) rewritePageRows(pageID uint32, rows []*Row) error {
	pg, err := e.bufferPool.GetPage(pageID)
	if err != nil {
		return err
	}

	offset := rowRegionStart
	for _, row := range rows {
		payload := row.Serialize()
		if offset+rowLenPrefix+len(payload) > page.PageSize {
			return fmt.Errorf("rewritten rows overflow page %d", pageID)
		}
		if err := pg.WriteInt(offset, uint32(len(payload))); err != nil {
			return err
		}
		if err := pg.WriteBytes(offset+rowLenPrefix, payload); err != nil {
			return err
		}
		offset += rowLenPrefix + len(payload)
	}
	pg.SetFreeStart(uint16(offset))
	return e.fileManager.WritePageWithWAL(pg)
}

func nullRow(n int) []types.Value {
	values := make([]types.Value, n)
	for i := range values {
		values[i] = types.NewNull()
	}
	return values
}
