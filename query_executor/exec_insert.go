package executor

import (
	"fmt"

	"pesadb/query_planner"
	"pesadb/types"
)

// executeInsert builds one full-width row per VALUES tuple: omitted
// columns take their declared DEFAULT, or NULL without one. Constraint
// validation runs before any page is touched, so a failing tuple in a
// multi-row INSERT leaves earlier tuples inserted but never writes a
// half-validated row.
func (e *Executor) executeInsert(plan *planner.InsertPlan) (*InsertResult, error) {
	schema := plan.Schema
	inserted := 0

	for _, tuple := range plan.Rows {
		values := make([]types.Value, len(schema.Columns))
		provided := make([]bool, len(schema.Columns))

		for i, colIdx := range plan.ColumnIndices {
			v, err := evalExpr(tuple[i], schema, nil)
			if err != nil {
				return nil, err
			}
			coerced, err := coerceToColumn(v, &schema.Columns[colIdx])
			if err != nil {
				return nil, err
			}
			values[colIdx] = coerced
			provided[colIdx] = true
		}

		for i := range schema.Columns {
			if provided[i] {
				continue
			}
			def, err := schema.Columns[i].DefaultValue()
			if err != nil {
				return nil, fmt.Errorf("default for column '%s': %w", schema.Columns[i].Name, err)
			}
			values[i] = def
		}

		row := &Row{Values: values}
		if err := e.constraints.ValidateInsert(schema, values); err != nil {
			return nil, err
		}
		if _, err := e.insertRow(schema, row); err != nil {
			return nil, err
		}
		inserted++
	}

	return &InsertResult{RowsInserted: inserted}, nil
}
