package executor

import (
	"fmt"
	"sort"

	"pesadb/catalog"
	"pesadb/query_planner"
)

func (e *Executor) executeSelect(plan *planner.SelectPlan) ([]*Row, error) {
	pageIDs, err := e.selectPages(plan)
	if err != nil {
		return nil, err
	}

	rows, err := e.loadRows(pageIDs, plan.Schema)
	if err != nil {
		return nil, err
	}

	mergedSchema := plan.Schema
	if len(plan.Joins) > 0 {
		rows, mergedSchema, err = e.executeJoins(rows, plan.Schema, plan.Joins)
		if err != nil {
			return nil, err
		}
	}

	// WHERE applies to the joined row shape; filter column indices are
	// resolved against it.
	if len(plan.Filters) > 0 {
		filtered := rows[:0]
		for _, row := range rows {
			if rowMatches(row, plan.Filters) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	if len(plan.OrderBy) > 0 {
		if err := e.sortRows(rows, plan, mergedSchema); err != nil {
			return nil, err
		}
	}

	rows = applyLimitOffset(rows, plan.Limit, plan.Offset)

	// Projection last, after joins and ordering.
	return projectRows(rows, plan.ColumnIndices), nil
}

// selectPages picks the pages to scan. An equality predicate on an
// indexed column narrows to the index's page set; everything else is a
// full table scan.
func (e *Executor) selectPages(plan *planner.SelectPlan) ([]uint32, error) {
	if plan.Access == planner.IndexScan {
		for _, cond := range plan.Filters {
			if cond.ColumnName != plan.IndexColumn || cond.Operator != "=" {
				continue
			}
			pageIDs, err := e.indexes.RangeLookup(plan.Table, cond.ColumnName, cond.Value, cond.Value)
			if err != nil {
				return nil, err
			}
			return dedupePages(pageIDs), nil
		}
	}
	return e.findTablePages(plan.Table)
}

func dedupePages(pageIDs []uint32) []uint32 {
	seen := make(map[uint32]bool, len(pageIDs))
	var out []uint32
	for _, id := range pageIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func applyLimitOffset(rows []*Row, limit, offset int) []*Row {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func projectRows(rows []*Row, indices []int) []*Row {
	projected := make([]*Row, 0, len(rows))
	for _, row := range rows {
		out := &Row{RowID: row.RowID}
		for _, idx := range indices {
			out.Values = append(out.Values, row.Values[idx])
		}
		projected = append(projected, out)
	}
	return projected
}

// sortRows orders rows by the ORDER BY clauses, applied in sequence.
// Columns resolve against the post-join row shape.
func (e *Executor) sortRows(rows []*Row, plan *planner.SelectPlan, merged *catalog.TableSchema) error {
	type sortKey struct {
		index     int
		ascending bool
	}
	keys := make([]sortKey, 0, len(plan.OrderBy))
	for _, clause := range plan.OrderBy {
		idx := resolveMergedColumn(clause.Column.Name, clause.Column.TableAlias, plan, merged)
		if idx < 0 {
			return fmt.Errorf("ORDER BY column '%s' not found", clause.Column)
		}
		keys = append(keys, sortKey{index: idx, ascending: clause.Ascending})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			a, b := rows[i].Values[key.index], rows[j].Values[key.index]
			if a.Equal(b) {
				continue
			}
			// NULLs sort first in ascending order.
			if a.IsNull() {
				return key.ascending
			}
			if b.IsNull() {
				return !key.ascending
			}
			if key.ascending {
				return a.Compare(b, "<")
			}
			return a.Compare(b, ">")
		}
		return false
	})
	return nil
}

// resolveMergedColumn finds a column in the joined row shape: base
// columns by bare name, joined columns by bare or qualified name.
func resolveMergedColumn(name, qualifier string, plan *planner.SelectPlan, merged *catalog.TableSchema) int {
	if qualifier == "" || qualifier == plan.Table || qualifier == plan.TableAlias {
		if idx := plan.Schema.ColumnIndex(name); idx >= 0 {
			return idx
		}
	}
	offset := len(plan.Schema.Columns)
	for _, join := range plan.Joins {
		if qualifier == "" || qualifier == join.Table || qualifier == join.Alias {
			if idx := join.Schema.ColumnIndex(name); idx >= 0 {
				return offset + idx
			}
		}
		offset += len(join.Schema.Columns)
	}
	if merged != nil && qualifier != "" {
		if idx := merged.ColumnIndex(qualifier + "." + name); idx >= 0 {
			return idx
		}
	}
	return -1
}
