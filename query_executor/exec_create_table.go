package executor

import (
	"fmt"

	"pesadb/query_planner"
)

func (e *Executor) executeCreateTable(plan *planner.CreateTablePlan) (*CreateTableResult, error) {
	if e.catalog.TableExists(plan.Table) {
		if plan.IfNotExists {
			return &CreateTableResult{Table: plan.Table, Created: false}, nil
		}
		return nil, fmt.Errorf("table '%s' already exists", plan.Table)
	}

	if err := e.catalog.CreateTable(plan.Schema); err != nil {
		return nil, fmt.Errorf("create table '%s': %w", plan.Table, err)
	}
	if err := e.constraints.CreateConstraintIndexes(plan.Schema); err != nil {
		return nil, fmt.Errorf("create table '%s' indexes: %w", plan.Table, err)
	}

	e.logger.Info("table created", "table", plan.Table, "columns", len(plan.Schema.Columns))
	return &CreateTableResult{Table: plan.Table, Created: true}, nil
}

// executeDropTable removes the table from the catalog and its indexes
// from the index catalog. Data pages are not reclaimed; they become
// unreachable once the schema is gone.
func (e *Executor) executeDropTable(plan *planner.DropTablePlan) (*DropTableResult, error) {
	if !e.catalog.TableExists(plan.Table) {
		if plan.IfExists {
			return &DropTableResult{Table: plan.Table, Dropped: false}, nil
		}
		return nil, fmt.Errorf("table '%s' not found", plan.Table)
	}

	for _, idx := range e.indexes.GetTableIndexes(plan.Table) {
		if err := e.indexes.DropIndex(plan.Table, idx.ColumnName); err != nil {
			return nil, fmt.Errorf("drop index %s.%s: %w", plan.Table, idx.ColumnName, err)
		}
	}
	if err := e.catalog.DropTable(plan.Table); err != nil {
		return nil, fmt.Errorf("drop table '%s': %w", plan.Table, err)
	}

	e.logger.Info("table dropped", "table", plan.Table)
	return &DropTableResult{Table: plan.Table, Dropped: true}, nil
}
