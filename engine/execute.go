package engine

import (
	"fmt"
	"os"

	"pesadb/query_executor"
	"pesadb/query_parser/parser"
	"pesadb/query_planner"
	"pesadb/types"
)

var errNoDatabase = fmt.Errorf("no database selected, run USE <name> first")

// Result is the tabular answer to SELECT, SHOW and DESCRIBE. Values
// are rendered through the type system's display form.
type Result struct {
	Columns  []string
	Rows     [][]string
	RowCount int
}

// StatusResult reports a database-level admin action.
type StatusResult struct {
	Status   string
	Database string
}

// ExecuteSQL parses, plans and runs one statement. Returns *Result for
// row-producing statements and the executor's status structs for
// everything else.
func (e *Engine) ExecuteSQL(sql string) (any, error) {
	stmt, err := e.parse(sql)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch s := stmt.(type) {
	case *parser.CreateDatabaseStmt:
		return e.createDatabase(s.DbName)
	case *parser.UseDatabaseStmt:
		if err := e.openLocked(s.DbName, false); err != nil {
			return nil, err
		}
		return &StatusResult{Status: "database changed", Database: s.DbName}, nil
	case *parser.ShowDatabasesStmt:
		return e.showDatabases()
	case *parser.ShowTablesStmt:
		return e.showTables()
	case *parser.DescribeStmt:
		return e.describeTable(s.Table)
	}

	if e.executor == nil {
		return nil, errNoDatabase
	}

	plan, err := e.planner.Plan(stmt)
	if err != nil {
		return nil, err
	}
	res, err := e.executor.Execute(plan)
	if err != nil {
		return nil, err
	}

	if rows, ok := res.([]*executor.Row); ok {
		return rowsToResult(plan, rows), nil
	}
	return res, nil
}

// parse consults the statement cache before lexing. Cached statements
// are read-only ASTs, safe to re-plan against any schema.
func (e *Engine) parse(sql string) (parser.Statement, error) {
	if stmt, ok := e.statements.Get(sql); ok {
		return stmt, nil
	}
	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}
	e.statements.Set(sql, stmt, 1)
	return stmt, nil
}

func (e *Engine) createDatabase(name string) (*StatusResult, error) {
	if err := validateDatabaseName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(e.databasePath(name)); err == nil {
		return nil, fmt.Errorf("database '%s' already exists", name)
	}
	current := e.dbName
	if err := e.openLocked(name, true); err != nil {
		return nil, err
	}
	// CREATE DATABASE does not switch the session; restore the
	// previous database if one was open.
	if current != "" && current != name {
		if err := e.openLocked(current, false); err != nil {
			return nil, err
		}
	}
	return &StatusResult{Status: "database created", Database: name}, nil
}

func (e *Engine) showDatabases() (*Result, error) {
	names, err := e.listDatabases()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: []string{"Database"}, RowCount: len(names)}
	for _, name := range names {
		res.Rows = append(res.Rows, []string{name})
	}
	return res, nil
}

func (e *Engine) showTables() (*Result, error) {
	if e.catalog == nil {
		return nil, errNoDatabase
	}
	tables := e.catalog.ListTables()
	res := &Result{
		Columns:  []string{fmt.Sprintf("Tables_in_%s", e.dbName)},
		RowCount: len(tables),
	}
	for _, name := range tables {
		res.Rows = append(res.Rows, []string{name})
	}
	return res, nil
}

func (e *Engine) describeTable(name string) (*Result, error) {
	if e.catalog == nil {
		return nil, errNoDatabase
	}
	schema := e.catalog.GetTable(name)
	if schema == nil {
		return nil, fmt.Errorf("table '%s' does not exist", name)
	}

	res := &Result{Columns: []string{"Field", "Type", "Null", "Key", "Default"}}
	for i := range schema.Columns {
		col := &schema.Columns[i]

		typeName := col.Type.String()
		if col.Type == types.TypeString {
			typeName = fmt.Sprintf("STRING(%d)", col.MaxLength)
		}
		nullable := "YES"
		if col.IsNotNull() || col.IsPrimaryKey() {
			nullable = "NO"
		}
		key := ""
		switch {
		case col.IsPrimaryKey():
			key = "PRI"
		case col.IsUnique():
			key = "UNI"
		}
		def := "NULL"
		if col.Default != "" {
			def = col.Default
		}
		res.Rows = append(res.Rows, []string{col.Name, typeName, nullable, key, def})
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

func rowsToResult(plan planner.Plan, rows []*executor.Row) *Result {
	res := &Result{RowCount: len(rows)}
	if sp, ok := plan.(*planner.SelectPlan); ok {
		res.Columns = sp.ColumnNames
	}
	for _, row := range rows {
		rendered := make([]string, len(row.Values))
		for i, v := range row.Values {
			rendered[i] = v.Display()
		}
		res.Rows = append(res.Rows, rendered)
	}
	return res
}
