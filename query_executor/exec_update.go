package executor

import (
	"pesadb/query_planner"
	"pesadb/types"
)

// pageUpdate is one page's share of an UPDATE, staged before any page
// or index is touched.
type pageUpdate struct {
	pageID   uint32
	rows     []*Row    // row region after the update, minus resized rows
	inPlace  []rowSlot // same-size replacements at their original slots
	resized  []*Row    // rows going back through the insert path
	replaced []*Row    // pre-update images of every touched row
}

// executeUpdate stages every matching row first, validates the whole
// statement against the constraints, and only then rewrites pages and
// indexes. An updated row of the same serialized size overwrites its
// slot in place; a resized row is dropped from the page and
// re-inserted through the normal path.
func (e *Executor) executeUpdate(plan *planner.UpdatePlan) (*UpdateResult, error) {
	pages, err := e.findTablePages(plan.Table)
	if err != nil {
		return nil, err
	}

	var staged []pageUpdate
	var oldRows, newRows [][]types.Value

	for _, pageID := range pages {
		slots, err := e.scanPageRows(pageID, plan.Schema)
		if err != nil {
			return nil, err
		}

		pu := pageUpdate{pageID: pageID}
		for _, slot := range slots {
			if !rowMatches(slot.row, plan.Filters) {
				pu.rows = append(pu.rows, slot.row)
				continue
			}

			newValues := make([]types.Value, len(slot.row.Values))
			copy(newValues, slot.row.Values)
			for _, asn := range plan.Assignments {
				v, err := evalExpr(asn.Expr, plan.Schema, slot.row)
				if err != nil {
					return nil, err
				}
				coerced, err := coerceToColumn(v, &plan.Schema.Columns[asn.ColumnIndex])
				if err != nil {
					return nil, err
				}
				newValues[asn.ColumnIndex] = coerced
			}

			newRow := &Row{Values: newValues, RowID: slot.row.RowID}
			if len(newRow.Serialize()) == slot.size-rowLenPrefix {
				pu.inPlace = append(pu.inPlace, rowSlot{row: newRow, offset: slot.offset, size: slot.size})
				pu.rows = append(pu.rows, newRow)
			} else {
				pu.resized = append(pu.resized, newRow)
			}
			pu.replaced = append(pu.replaced, slot.row)
			oldRows = append(oldRows, slot.row.Values)
			newRows = append(newRows, newValues)
		}
		if len(pu.replaced) > 0 {
			staged = append(staged, pu)
		}
	}

	// All constraint checks happen before the first mutation, so a
	// violation anywhere leaves the table and its indexes untouched.
	if err := e.constraints.ValidateUpdateBatch(plan.Schema, oldRows, newRows); err != nil {
		return nil, err
	}

	updated := 0
	for _, pu := range staged {
		for _, old := range pu.replaced {
			e.removeIndexEntries(plan.Schema, old)
		}

		if len(pu.resized) > 0 {
			// Compact the page without the resized rows, then put the
			// new versions back through the insert path.
			if err := e.rewritePageRows(pu.pageID, pu.rows); err != nil {
				return nil, err
			}
			// In-place rows moved within the page during the rewrite
			// but stayed on it, so only their keys need re-registering.
			for _, slot := range pu.inPlace {
				if err := e.updateIndexesOnInsert(plan.Schema, slot.row, pu.pageID); err != nil {
					return nil, err
				}
			}
			for _, row := range pu.resized {
				if _, err := e.insertRow(plan.Schema, row); err != nil {
					return nil, err
				}
			}
		} else {
			pg, err := e.bufferPool.GetPage(pu.pageID)
			if err != nil {
				return nil, err
			}
			for _, slot := range pu.inPlace {
				payload := slot.row.Serialize()
				if err := pg.WriteInt(slot.offset, uint32(len(payload))); err != nil {
					return nil, err
				}
				if err := pg.WriteBytes(slot.offset+rowLenPrefix, payload); err != nil {
					return nil, err
				}
				if err := e.updateIndexesOnInsert(plan.Schema, slot.row, pu.pageID); err != nil {
					return nil, err
				}
			}
			if err := e.fileManager.WritePageWithWAL(pg); err != nil {
				return nil, err
			}
		}
		updated += len(pu.replaced)
	}

	e.logger.Info("update complete", "table", plan.Table, "rows", updated)
	return &UpdateResult{RowsUpdated: updated}, nil
}

// executeDelete drops matching rows by rewriting each touched page's
// row region with only the survivors.
func (e *Executor) executeDelete(plan *planner.DeletePlan) (*DeleteResult, error) {
	pages, err := e.findTablePages(plan.Table)
	if err != nil {
		return nil, err
	}

	deleted := 0
	for _, pageID := range pages {
		slots, err := e.scanPageRows(pageID, plan.Schema)
		if err != nil {
			return nil, err
		}

		var surviving []*Row
		removed := 0
		for _, slot := range slots {
			if rowMatches(slot.row, plan.Filters) {
				e.removeIndexEntries(plan.Schema, slot.row)
				removed++
			} else {
				surviving = append(surviving, slot.row)
			}
		}
		if removed == 0 {
			continue
		}
		if err := e.rewritePageRows(pageID, surviving); err != nil {
			return nil, err
		}
		deleted += removed
	}

	e.logger.Info("delete complete", "table", plan.Table, "rows", deleted)
	return &DeleteResult{RowsDeleted: deleted}, nil
}
