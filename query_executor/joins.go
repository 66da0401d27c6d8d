package executor

import (
	"fmt"

	"pesadb/catalog"
	"pesadb/query_parser/parser"
	"pesadb/query_planner"
	"pesadb/types"
)

// executeJoins left-folds the join list: the running row set joins
// against each table in turn, widening the row shape. Returns the
// joined rows and the merged schema describing that shape.
func (e *Executor) executeJoins(outer []*Row, outerSchema *catalog.TableSchema, joins []planner.PlannedJoin) ([]*Row, *catalog.TableSchema, error) {
	current := outer
	currentSchema := outerSchema

	for _, join := range joins {
		innerPages, err := e.findTablePages(join.Table)
		if err != nil {
			return nil, nil, err
		}
		inner, err := e.loadRows(innerPages, join.Schema)
		if err != nil {
			return nil, nil, err
		}

		// Hash join for plain column-to-column equality, nested loop
		// for everything else.
		if join.On.Operator == "=" && join.On.Left.IsColumn && join.On.Right.IsColumn {
			current, err = e.hashJoin(current, inner, currentSchema, join)
		} else {
			current, err = e.nestedLoopJoin(current, inner, currentSchema, join)
		}
		if err != nil {
			return nil, nil, err
		}

		currentSchema = mergeSchemas(currentSchema, join.Schema)
	}
	return current, currentSchema, nil
}

// resolveJoinOperand maps a column operand to (side, index): side true
// means the inner table. Qualified names try the inner alias first,
// then the accumulated outer schema, then fall back to the inner side.
func resolveJoinOperand(op planner.Operand, outerSchema *catalog.TableSchema, join planner.PlannedJoin) (bool, int) {
	if op.Table != "" {
		if op.Table == join.Table || op.Table == join.Alias {
			if idx := join.Schema.ColumnIndex(op.Column); idx >= 0 {
				return true, idx
			}
		}
		// A merged schema prefixes clashing names, so the qualified
		// form must win over a bare lookup.
		if idx := outerSchema.ColumnIndex(op.Table + "." + op.Column); idx >= 0 {
			return false, idx
		}
	}
	if idx := outerSchema.ColumnIndex(op.Column); idx >= 0 {
		return false, idx
	}
	if idx := join.Schema.ColumnIndex(op.Column); idx >= 0 {
		return true, idx
	}
	return false, -1
}

func (e *Executor) hashJoin(outer, inner []*Row, outerSchema *catalog.TableSchema, join planner.PlannedJoin) ([]*Row, error) {
	lInner, lIdx := resolveJoinOperand(join.On.Left, outerSchema, join)
	rInner, rIdx := resolveJoinOperand(join.On.Right, outerSchema, join)

	var outerKey, innerKey int
	switch {
	case lIdx >= 0 && rIdx >= 0 && !lInner && rInner:
		outerKey, innerKey = lIdx, rIdx
	case lIdx >= 0 && rIdx >= 0 && lInner && !rInner:
		outerKey, innerKey = rIdx, lIdx
	default:
		// Both sides resolved to the same relation, or one side is
		// unresolvable; the nested loop handles it condition-by-row.
		return e.nestedLoopJoin(outer, inner, outerSchema, join)
	}

	table := make(map[any][]*Row, len(inner))
	for _, row := range inner {
		key := row.Values[innerKey]
		if key.IsNull() {
			continue
		}
		table[key.Raw()] = append(table[key.Raw()], row)
	}

	var joined []*Row
	matchedInner := make(map[int]bool)

	for _, outerRow := range outer {
		key := outerRow.Values[outerKey]
		var matches []*Row
		if !key.IsNull() {
			matches = table[key.Raw()]
		}
		if len(matches) > 0 {
			for _, innerRow := range matches {
				joined = append(joined, concatRows(outerRow, innerRow.Values))
				matchedInner[innerRow.RowID] = true
			}
		} else if join.Type == parser.JoinLeft || join.Type == parser.JoinFull {
			joined = append(joined, concatRows(outerRow, nullRow(len(join.Schema.Columns))))
		}
	}

	joined = append(joined, unmatchedInnerRows(inner, matchedInner, outerSchema, join)...)
	return joined, nil
}

func (e *Executor) nestedLoopJoin(outer, inner []*Row, outerSchema *catalog.TableSchema, join planner.PlannedJoin) ([]*Row, error) {
	var joined []*Row
	matchedInner := make(map[int]bool)

	for _, outerRow := range outer {
		matched := false
		for _, innerRow := range inner {
			ok, err := evalJoinCondition(join.On, outerRow, innerRow, outerSchema, join)
			if err != nil {
				return nil, err
			}
			if ok {
				joined = append(joined, concatRows(outerRow, innerRow.Values))
				matchedInner[innerRow.RowID] = true
				matched = true
			}
		}
		if !matched && (join.Type == parser.JoinLeft || join.Type == parser.JoinFull) {
			joined = append(joined, concatRows(outerRow, nullRow(len(join.Schema.Columns))))
		}
	}

	joined = append(joined, unmatchedInnerRows(inner, matchedInner, outerSchema, join)...)
	return joined, nil
}

// unmatchedInnerRows emits null-padded rows for inner tuples no outer
// row matched; only RIGHT and FULL joins want them.
func unmatchedInnerRows(inner []*Row, matched map[int]bool, outerSchema *catalog.TableSchema, join planner.PlannedJoin) []*Row {
	if join.Type != parser.JoinRight && join.Type != parser.JoinFull {
		return nil
	}
	var rows []*Row
	for _, innerRow := range inner {
		if !matched[innerRow.RowID] {
			values := append(nullRow(len(outerSchema.Columns)), innerRow.Values...)
			rows = append(rows, &Row{Values: values})
		}
	}
	return rows
}

func evalJoinCondition(cond planner.JoinCondition, outerRow, innerRow *Row, outerSchema *catalog.TableSchema, join planner.PlannedJoin) (bool, error) {
	left, err := operandValue(cond.Left, outerRow, innerRow, outerSchema, join)
	if err != nil {
		return false, err
	}
	right, err := operandValue(cond.Right, outerRow, innerRow, outerSchema, join)
	if err != nil {
		return false, err
	}
	return left.Compare(right, cond.Operator), nil
}

func operandValue(op planner.Operand, outerRow, innerRow *Row, outerSchema *catalog.TableSchema, join planner.PlannedJoin) (types.Value, error) {
	if !op.IsColumn {
		return op.Literal, nil
	}
	isInner, idx := resolveJoinOperand(op, outerSchema, join)
	if idx < 0 {
		return types.Value{}, fmt.Errorf("join column '%s' not found", op.Column)
	}
	if isInner {
		return innerRow.Values[idx], nil
	}
	return outerRow.Values[idx], nil
}

func concatRows(outer *Row, innerValues []types.Value) *Row {
	values := make([]types.Value, 0, len(outer.Values)+len(innerValues))
	values = append(values, outer.Values...)
	values = append(values, innerValues...)
	return &Row{Values: values}
}

// mergeSchemas builds a synthetic schema over the joined row shape for
// column resolution in later joins. Clashing names get a table prefix,
// and a `_2` suffix if even that collides.
func mergeSchemas(s1, s2 *catalog.TableSchema) *catalog.TableSchema {
	merged := &catalog.TableSchema{Name: s1.Name + "_" + s2.Name}
	seen := make(map[string]bool)

	appendCol := func(owner string, col catalog.Column) {
		name := col.Name
		if seen[name] {
			name = owner + "." + col.Name
			if seen[name] {
				name = owner + "." + col.Name + "_2"
			}
		}
		seen[name] = true
		col.Name = name
		merged.Columns = append(merged.Columns, col)
	}

	for _, col := range s1.Columns {
		appendCol(s1.Name, col)
	}
	for _, col := range s2.Columns {
		appendCol(s2.Name, col)
	}
	return merged
}
