package executor

import (
	"fmt"

	"pesadb/query_planner"
	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/page"
)

/*
Table data pages:

	offset 0   generic page header (13 bytes)
	offset 13  table name, length-prefixed in a 64-byte field
	offset 77  rows: [row_len:u32][row payload] repeated up to free_start

Row payloads are never compacted in place; DELETE rewrites the whole
row region of a page instead.
*/
const (
	tableNameOffset = page.HeaderSize
	tableNameWidth  = 64
	rowRegionStart  = tableNameOffset + tableNameWidth
	rowLenPrefix    = 4
)

// Execute runs one plan and returns a typed result: []*Row for SELECT,
// a status struct otherwise.
func (e *Executor) Execute(plan planner.Plan) (any, error) {
	switch p := plan.(type) {
	case *planner.SelectPlan:
		return e.executeSelect(p)
	case *planner.InsertPlan:
		return e.executeInsert(p)
	case *planner.CreateTablePlan:
		return e.executeCreateTable(p)
	case *planner.DropTablePlan:
		return e.executeDropTable(p)
	case *planner.UpdatePlan:
		return e.executeUpdate(p)
	case *planner.DeletePlan:
		return e.executeDelete(p)
	}
	return nil, fmt.Errorf("cannot execute plan of type %T", plan)
}

// findTablePages scans every page and collects the TABLE pages whose
// header names the given table. Pages 0-2 are system pages.
func (e *Executor) findTablePages(tableName string) ([]uint32, error) {
	total, err := e.fileManager.PageCount()
	if err != nil {
		return nil, err
	}

	var pages []uint32
	for pageID := uint32(filemanager.IndexCatalogPageID + 1); pageID < total; pageID++ {
		pg, err := e.bufferPool.GetPage(pageID)
		if err != nil {
			return nil, err
		}
		if pg.Type() != page.TypeTable {
			continue
		}
		name, err := pg.ReadString(tableNameOffset)
		if err != nil {
			continue
		}
		if name == tableName {
			pages = append(pages, pageID)
		}
	}
	return pages, nil
}

// rowSlot is a row plus its physical location, kept so UPDATE can
// overwrite an equal-sized rewrite in place.
type rowSlot struct {
	row    *Row
	offset int
	size   int
}
