package planner

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"pesadb/catalog"
	"pesadb/query_parser/parser"
	"pesadb/storage_engine/index"
	"pesadb/types"
)

// Planner turns parsed statements into execution plans, resolving
// table and column references against the catalog and choosing between
// sequential and index access.
type Planner struct {
	catalog *catalog.Catalog
	indexes *index.IndexManager
	logger  *slog.Logger
}

func New(cat *catalog.Catalog, im *index.IndexManager, logger *slog.Logger) *Planner {
	return &Planner{
		catalog: cat,
		indexes: im,
		logger:  logger.With("component", "planner"),
	}
}

func (p *Planner) Plan(stmt parser.Statement) (Plan, error) {
	switch s := stmt.(type) {
	case *parser.SelectStmt:
		return p.planSelect(s)
	case *parser.InsertStmt:
		return p.planInsert(s)
	case *parser.CreateTableStmt:
		return p.planCreateTable(s)
	case *parser.DropTableStmt:
		return p.planDropTable(s)
	case *parser.UpdateStmt:
		return p.planUpdate(s)
	case *parser.DeleteStmt:
		return p.planDelete(s)
	}
	return nil, fmt.Errorf("cannot plan statement of type %T", stmt)
}

func (p *Planner) lookupTable(name string) (*catalog.TableSchema, error) {
	schema := p.catalog.GetTable(name)
	if schema == nil {
		return nil, fmt.Errorf("table '%s' not found", name)
	}
	return schema, nil
}

func (p *Planner) planSelect(stmt *parser.SelectStmt) (*SelectPlan, error) {
	schema, err := p.lookupTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	plan := &SelectPlan{
		Table:      stmt.Table,
		TableAlias: stmt.TableAlias,
		Schema:     schema,
		OrderBy:    stmt.OrderBy,
		Limit:      stmt.Limit,
		Offset:     stmt.Offset,
		Access:     SeqScan,
	}

	for _, join := range stmt.Joins {
		joinSchema, err := p.lookupTable(join.Table)
		if err != nil {
			return nil, err
		}
		cond, err := p.extractJoinCondition(join.On)
		if err != nil {
			return nil, err
		}
		plan.Joins = append(plan.Joins, PlannedJoin{
			Table:  join.Table,
			Alias:  join.Alias,
			Type:   join.Type,
			On:     cond,
			Schema: joinSchema,
		})
	}

	if err := p.resolveSelectColumns(stmt, plan); err != nil {
		return nil, err
	}

	if stmt.Where != nil {
		// WHERE columns live in the joined row shape, same as the
		// projection list.
		resolve := func(ref parser.ColumnRef) (int, error) {
			return p.resolveColumnRef(ref, stmt.TableAlias, plan)
		}
		filters, err := p.extractConditions(stmt.Where, resolve, "AND")
		if err != nil {
			return nil, err
		}
		plan.Filters = filters
	}

	// An index narrows the scan, which is only sound when every
	// condition is AND-connected and the condition targets a base-table
	// column (a joined column can share its name with an indexed one).
	if p.indexes != nil && len(plan.Filters) > 0 && allAndConnected(plan.Filters) {
		for _, cond := range plan.Filters {
			if cond.ColumnIndex >= len(schema.Columns) {
				continue
			}
			switch cond.Operator {
			case "=", "<", ">", "<=", ">=":
				if p.indexes.HasIndex(schema.Name, cond.ColumnName) {
					plan.Access = IndexScan
					plan.IndexColumn = cond.ColumnName
				}
			}
			if plan.Access == IndexScan {
				break
			}
		}
	}

	return plan, nil
}

func allAndConnected(filters []FilterCondition) bool {
	for _, f := range filters {
		if f.Connector == "OR" {
			return false
		}
	}
	return true
}

// resolveSelectColumns fills ColumnIndices/ColumnNames. Indices address
// the joined row shape: base table columns first, then each joined
// table's columns in join order. `*` expands across all of them.
func (p *Planner) resolveSelectColumns(stmt *parser.SelectStmt, plan *SelectPlan) error {
	if len(stmt.Columns) == 1 && stmt.Columns[0].Name == "*" {
		for i, col := range plan.Schema.Columns {
			plan.ColumnIndices = append(plan.ColumnIndices, i)
			plan.ColumnNames = append(plan.ColumnNames, col.Name)
		}
		offset := len(plan.Schema.Columns)
		for _, join := range plan.Joins {
			for i, col := range join.Schema.Columns {
				plan.ColumnIndices = append(plan.ColumnIndices, offset+i)
				plan.ColumnNames = append(plan.ColumnNames, join.Table+"."+col.Name)
			}
			offset += len(join.Schema.Columns)
		}
		return nil
	}

	for _, ref := range stmt.Columns {
		idx, err := p.resolveColumnRef(ref, stmt.TableAlias, plan)
		if err != nil {
			return err
		}
		plan.ColumnIndices = append(plan.ColumnIndices, idx)
		plan.ColumnNames = append(plan.ColumnNames, ref.String())
	}
	return nil
}

// resolveColumnRef maps a column reference to its index in the joined
// row shape. A qualifier matches the base table by name or alias, or a
// joined table likewise; an unqualified name searches base-first.
func (p *Planner) resolveColumnRef(ref parser.ColumnRef, baseAlias string, plan *SelectPlan) (int, error) {
	matchesBase := ref.TableAlias == "" ||
		ref.TableAlias == plan.Table || ref.TableAlias == baseAlias

	if matchesBase {
		if idx := plan.Schema.ColumnIndex(ref.Name); idx >= 0 {
			return idx, nil
		}
		if ref.TableAlias != "" {
			return 0, fmt.Errorf("column '%s' not found in table '%s'", ref.Name, plan.Table)
		}
	}

	offset := len(plan.Schema.Columns)
	for _, join := range plan.Joins {
		matches := ref.TableAlias == "" ||
			ref.TableAlias == join.Table || ref.TableAlias == join.Alias
		if matches {
			if idx := join.Schema.ColumnIndex(ref.Name); idx >= 0 {
				return offset + idx, nil
			}
		}
		offset += len(join.Schema.Columns)
	}

	return 0, fmt.Errorf("column '%s' not found", ref)
}

// columnResolver maps a WHERE column reference to its index in the
// row shape the filters will run against.
type columnResolver func(parser.ColumnRef) (int, error)

func schemaResolver(schema *catalog.TableSchema) columnResolver {
	return func(ref parser.ColumnRef) (int, error) {
		idx := schema.ColumnIndex(ref.Name)
		if idx < 0 {
			return 0, fmt.Errorf("column '%s' not found in table '%s'", ref.Name, schema.Name)
		}
		return idx, nil
	}
}

// extractConditions flattens the WHERE tree into leaf conditions. Each
// leaf remembers the boolean operator that connects it to the one
// before it. Leaves that are not `column op literal` are rejected.
func (p *Planner) extractConditions(expr parser.Expression, resolve columnResolver, connector string) ([]FilterCondition, error) {
	bin, ok := expr.(*parser.BinaryExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported WHERE clause shape (%T)", expr)
	}

	if bin.Operator == "AND" || bin.Operator == "OR" {
		left, err := p.extractConditions(bin.Left, resolve, connector)
		if err != nil {
			return nil, err
		}
		right, err := p.extractConditions(bin.Right, resolve, bin.Operator)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}

	colExpr, ok := bin.Left.(*parser.ColumnExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported WHERE condition: left side must be a column")
	}
	litExpr, ok := bin.Right.(*parser.LiteralExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported WHERE condition: right side must be a literal")
	}

	idx, err := resolve(colExpr.Column)
	if err != nil {
		return nil, err
	}

	return []FilterCondition{{
		ColumnIndex: idx,
		ColumnName:  colExpr.Column.Name,
		Operator:    bin.Operator,
		Value:       litExpr.Value,
		Connector:   connector,
	}}, nil
}

func (p *Planner) extractJoinCondition(expr parser.Expression) (JoinCondition, error) {
	bin, ok := expr.(*parser.BinaryExpr)
	if !ok {
		return JoinCondition{}, fmt.Errorf("unsupported join condition (%T)", expr)
	}
	left, err := extractOperand(bin.Left)
	if err != nil {
		return JoinCondition{}, err
	}
	right, err := extractOperand(bin.Right)
	if err != nil {
		return JoinCondition{}, err
	}
	return JoinCondition{Left: left, Operator: bin.Operator, Right: right}, nil
}

func extractOperand(expr parser.Expression) (Operand, error) {
	switch e := expr.(type) {
	case *parser.ColumnExpr:
		return Operand{IsColumn: true, Column: e.Column.Name, Table: e.Column.TableAlias}, nil
	case *parser.LiteralExpr:
		return Operand{Literal: e.Value}, nil
	}
	return Operand{}, fmt.Errorf("unsupported join operand (%T)", expr)
}

func (p *Planner) planInsert(stmt *parser.InsertStmt) (*InsertPlan, error) {
	schema, err := p.lookupTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	var indices []int
	if stmt.Columns != nil {
		for _, name := range stmt.Columns {
			idx := schema.ColumnIndex(name)
			if idx < 0 {
				return nil, fmt.Errorf("column '%s' not found in table '%s'", name, stmt.Table)
			}
			indices = append(indices, idx)
		}
	} else {
		for i := range schema.Columns {
			indices = append(indices, i)
		}
	}

	for _, row := range stmt.Rows {
		if len(row) != len(indices) {
			return nil, fmt.Errorf("expected %d values, got %d", len(indices), len(row))
		}
	}

	return &InsertPlan{
		Table:         stmt.Table,
		Schema:        schema,
		ColumnIndices: indices,
		Rows:          stmt.Rows,
	}, nil
}

func (p *Planner) planCreateTable(stmt *parser.CreateTableStmt) (*CreateTablePlan, error) {
	if !stmt.IfNotExists && p.catalog.TableExists(stmt.Table) {
		return nil, fmt.Errorf("table '%s' already exists", stmt.Table)
	}

	columns := make([]catalog.Column, 0, len(stmt.Columns))
	for _, def := range stmt.Columns {
		colType, maxLen, err := parseColumnType(def.Type)
		if err != nil {
			return nil, err
		}

		var constraints uint8
		for _, c := range def.Constraints {
			switch c {
			case "PRIMARY KEY":
				constraints |= catalog.ConstraintPrimaryKey
			case "UNIQUE":
				constraints |= catalog.ConstraintUnique
			case "NOT NULL":
				constraints |= catalog.ConstraintNotNull
			}
		}

		var defaultLiteral string
		if def.Default != nil {
			defaultLiteral = def.Default.Display()
		}

		columns = append(columns, catalog.Column{
			Name:        def.Name,
			Type:        colType,
			MaxLength:   maxLen,
			Constraints: constraints,
			Default:     defaultLiteral,
		})
	}

	fks := make([]catalog.ForeignKey, 0, len(stmt.ForeignKeys))
	for _, fk := range stmt.ForeignKeys {
		fks = append(fks, catalog.ForeignKey{
			Column:    fk.Column,
			RefTable:  fk.RefTable,
			RefColumn: fk.RefColumn,
		})
	}

	schema, err := catalog.NewTableSchema(stmt.Table, columns, fks)
	if err != nil {
		return nil, err
	}

	return &CreateTablePlan{
		Table:       stmt.Table,
		Schema:      schema,
		IfNotExists: stmt.IfNotExists,
	}, nil
}

// parseColumnType maps a declared type like "INT" or "STRING(64)" to
// the storage type. An unbounded STRING gets the 255 default.
func parseColumnType(declared string) (types.Type, uint16, error) {
	upper := strings.ToUpper(declared)
	switch {
	case upper == "INT" || upper == "INTEGER":
		return types.TypeInteger, 0, nil
	case strings.HasPrefix(upper, "STRING"):
		maxLen := uint16(255)
		if open := strings.IndexByte(upper, '('); open >= 0 {
			close := strings.IndexByte(upper, ')')
			if close <= open {
				return 0, 0, fmt.Errorf("malformed type %q", declared)
			}
			n, err := strconv.Atoi(upper[open+1 : close])
			if err != nil || n <= 0 || n > 65535 {
				return 0, 0, fmt.Errorf("invalid string length in %q", declared)
			}
			maxLen = uint16(n)
		}
		return types.TypeString, maxLen, nil
	case upper == "FLOAT":
		return types.TypeFloat, 0, nil
	case upper == "DOUBLE":
		return types.TypeDouble, 0, nil
	case upper == "BOOLEAN" || upper == "BOOL":
		return types.TypeBoolean, 0, nil
	case upper == "TIMESTAMP":
		return types.TypeTimestamp, 0, nil
	}
	return 0, 0, fmt.Errorf("unknown data type: %s", declared)
}

func (p *Planner) planDropTable(stmt *parser.DropTableStmt) (*DropTablePlan, error) {
	if !stmt.IfExists && !p.catalog.TableExists(stmt.Table) {
		return nil, fmt.Errorf("table '%s' not found", stmt.Table)
	}
	return &DropTablePlan{Table: stmt.Table, IfExists: stmt.IfExists}, nil
}

func (p *Planner) planUpdate(stmt *parser.UpdateStmt) (*UpdatePlan, error) {
	schema, err := p.lookupTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	plan := &UpdatePlan{Table: stmt.Table, Schema: schema}
	for _, a := range stmt.Assignments {
		idx := schema.ColumnIndex(a.Column)
		if idx < 0 {
			return nil, fmt.Errorf("column '%s' not found in table '%s'", a.Column, stmt.Table)
		}
		plan.Assignments = append(plan.Assignments, PlannedAssignment{
			ColumnIndex: idx,
			ColumnName:  a.Column,
			Expr:        a.Expr,
		})
	}

	if stmt.Where != nil {
		filters, err := p.extractConditions(stmt.Where, schemaResolver(schema), "AND")
		if err != nil {
			return nil, err
		}
		plan.Filters = filters
	}
	return plan, nil
}

func (p *Planner) planDelete(stmt *parser.DeleteStmt) (*DeletePlan, error) {
	schema, err := p.lookupTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	plan := &DeletePlan{Table: stmt.Table, Schema: schema}
	if stmt.Where != nil {
		filters, err := p.extractConditions(stmt.Where, schemaResolver(schema), "AND")
		if err != nil {
			return nil, err
		}
		plan.Filters = filters
	}
	return plan, nil
}
