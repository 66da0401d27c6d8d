package parser

import (
	"pesadb/types"
)

// Statement is the generic interface for all parsed statements.
type Statement interface{}

// Expression is the generic interface for expression tree nodes.
type Expression interface{}

// ColumnRef names a column, optionally qualified by a table name or alias.
type ColumnRef struct {
	Name       string
	TableAlias string
}

func (c ColumnRef) String() string {
	if c.TableAlias != "" {
		return c.TableAlias + "." + c.Name
	}
	return c.Name
}

type BinaryExpr struct {
	Left     Expression
	Operator string
	Right    Expression
}

type UnaryExpr struct {
	Operator string
	Operand  Expression
}

type ColumnExpr struct {
	Column ColumnRef
}

type LiteralExpr struct {
	Value types.Value
}

type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeft
	JoinRight
	JoinFull
)

func (jt JoinType) String() string {
	switch jt {
	case JoinInner:
		return "INNER"
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	case JoinFull:
		return "FULL"
	}
	return "UNKNOWN"
}

type JoinClause struct {
	Table string
	Type  JoinType
	On    Expression
	Alias string
}

type OrderByClause struct {
	Column    ColumnRef
	Ascending bool
}

// SelectStmt. Limit and Offset are -1 when the clause is absent.
type SelectStmt struct {
	Columns    []ColumnRef
	Table      string
	TableAlias string
	Joins      []JoinClause
	Where      Expression
	OrderBy    []OrderByClause
	Limit      int
	Offset     int
}

// InsertStmt. Columns is nil when the column list was omitted, meaning
// values bind to the table's columns in schema order.
type InsertStmt struct {
	Table   string
	Columns []string
	Rows    [][]Expression
}

type ColumnDef struct {
	Name        string
	Type        string // e.g. "INT", "STRING(64)"
	Constraints []string
	Default     *types.Value
}

type ForeignKeyDef struct {
	Column    string
	RefTable  string
	RefColumn string
}

type CreateTableStmt struct {
	Table       string
	Columns     []ColumnDef
	ForeignKeys []ForeignKeyDef
	IfNotExists bool
}

type DropTableStmt struct {
	Table    string
	IfExists bool
}

type Assignment struct {
	Column string
	Expr   Expression
}

type UpdateStmt struct {
	Table       string
	Assignments []Assignment
	Where       Expression
}

type DeleteStmt struct {
	Table string
	Where Expression
}

type CreateDatabaseStmt struct {
	DbName string
}

type UseDatabaseStmt struct {
	DbName string
}

type DescribeStmt struct {
	Table string
}

type ShowTablesStmt struct{}

type ShowDatabasesStmt struct{}
