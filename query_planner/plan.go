package planner

import (
	"pesadb/catalog"
	"pesadb/query_parser/parser"
	"pesadb/types"
)

// Plan is the generic interface over all execution plans.
type Plan interface{}

type AccessMethod string

const (
	SeqScan   AccessMethod = "SEQ_SCAN"
	IndexScan AccessMethod = "INDEX_SCAN"
)

// FilterCondition is one leaf of a WHERE clause, flattened out of the
// expression tree. Connector records the boolean operator linking this
// condition to the previous one ("AND" for the first).
type FilterCondition struct {
	ColumnIndex int
	ColumnName  string
	Operator    string
	Value       types.Value
	Connector   string
}

// Operand is one side of a join condition: a column reference with an
// optional table qualifier, or a literal.
type Operand struct {
	IsColumn bool
	Column   string
	Table    string
	Literal  types.Value
}

type JoinCondition struct {
	Left     Operand
	Operator string
	Right    Operand
}

type PlannedJoin struct {
	Table  string
	Alias  string
	Type   parser.JoinType
	On     JoinCondition
	Schema *catalog.TableSchema
}

// SelectPlan. ColumnIndices index into the row shape after all joins
// are applied (base columns first, then each join's in order). Limit
// and Offset are -1 when absent.
type SelectPlan struct {
	Table         string
	TableAlias    string
	Schema        *catalog.TableSchema
	ColumnIndices []int
	ColumnNames   []string
	Filters       []FilterCondition
	OrderBy       []parser.OrderByClause
	Limit         int
	Offset        int
	Access        AccessMethod
	IndexColumn   string
	Joins         []PlannedJoin
}

type InsertPlan struct {
	Table         string
	Schema        *catalog.TableSchema
	ColumnIndices []int
	Rows          [][]parser.Expression
}

type CreateTablePlan struct {
	Table       string
	Schema      *catalog.TableSchema
	IfNotExists bool
}

type DropTablePlan struct {
	Table    string
	IfExists bool
}

type PlannedAssignment struct {
	ColumnIndex int
	ColumnName  string
	Expr        parser.Expression
}

type UpdatePlan struct {
	Table       string
	Schema      *catalog.TableSchema
	Assignments []PlannedAssignment
	Filters     []FilterCondition
}

type DeletePlan struct {
	Table   string
	Schema  *catalog.TableSchema
	Filters []FilterCondition
}
