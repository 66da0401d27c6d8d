package executor

import (
	"fmt"

	"pesadb/catalog"
	"pesadb/query_parser/parser"
	"pesadb/types"
)

// evalExpr evaluates a value expression against a row of the given
// schema. row may be nil for contexts without one (INSERT values),
// where column references are an error.
func evalExpr(expr parser.Expression, schema *catalog.TableSchema, row *Row) (types.Value, error) {
	switch e := expr.(type) {
	case *parser.LiteralExpr:
		return e.Value, nil

	case *parser.ColumnExpr:
		if row == nil {
			return types.Value{}, fmt.Errorf("column reference '%s' not allowed here", e.Column.Name)
		}
		idx := schema.ColumnIndex(e.Column.Name)
		if idx < 0 || idx >= len(row.Values) {
			return types.Value{}, fmt.Errorf("column '%s' not found in table '%s'", e.Column.Name, schema.Name)
		}
		return row.Values[idx], nil

	case *parser.UnaryExpr:
		operand, err := evalExpr(e.Operand, schema, row)
		if err != nil {
			return types.Value{}, err
		}
		return applyUnary(e.Operator, operand)

	case *parser.BinaryExpr:
		left, err := evalExpr(e.Left, schema, row)
		if err != nil {
			return types.Value{}, err
		}
		right, err := evalExpr(e.Right, schema, row)
		if err != nil {
			return types.Value{}, err
		}
		return applyBinary(e.Operator, left, right)
	}
	return types.Value{}, fmt.Errorf("unsupported expression (%T)", expr)
}

func applyUnary(op string, v types.Value) (types.Value, error) {
	if v.IsNull() {
		return types.NewNull(), nil
	}
	switch op {
	case "+":
		if isNumericValue(v) {
			return v, nil
		}
	case "-":
		switch v.Type {
		case types.TypeInteger:
			return types.NewInteger(-v.Int), nil
		case types.TypeFloat, types.TypeDouble:
			return types.Value{Type: v.Type, Float: -v.Float}, nil
		}
	case "NOT":
		if v.Type == types.TypeBoolean {
			return types.NewBoolean(!v.Bool), nil
		}
	}
	return types.Value{}, fmt.Errorf("cannot apply unary %s to %s", op, v.Type)
}

// applyBinary handles the arithmetic operators. Any NULL operand makes
// the result NULL. Integer pairs stay integral; mixed numerics widen to
// double; + concatenates strings.
func applyBinary(op string, left, right types.Value) (types.Value, error) {
	if left.IsNull() || right.IsNull() {
		return types.NewNull(), nil
	}

	if op == "+" && left.Type == types.TypeString && right.Type == types.TypeString {
		return types.NewString(left.Str + right.Str), nil
	}

	if !isNumericValue(left) || !isNumericValue(right) {
		return types.Value{}, fmt.Errorf("cannot apply %s to %s and %s", op, left.Type, right.Type)
	}

	if left.Type == types.TypeInteger && right.Type == types.TypeInteger {
		a, b := left.Int, right.Int
		switch op {
		case "+":
			return types.NewInteger(a + b), nil
		case "-":
			return types.NewInteger(a - b), nil
		case "*":
			return types.NewInteger(a * b), nil
		case "/":
			if b == 0 {
				return types.Value{}, fmt.Errorf("division by zero")
			}
			return types.NewInteger(a / b), nil
		}
	}

	a, b := asFloat(left), asFloat(right)
	switch op {
	case "+":
		return types.NewDouble(a + b), nil
	case "-":
		return types.NewDouble(a - b), nil
	case "*":
		return types.NewDouble(a * b), nil
	case "/":
		if b == 0 {
			return types.Value{}, fmt.Errorf("division by zero")
		}
		return types.NewDouble(a / b), nil
	}
	return types.Value{}, fmt.Errorf("unsupported operator %s", op)
}

func isNumericValue(v types.Value) bool {
	switch v.Type {
	case types.TypeInteger, types.TypeFloat, types.TypeDouble:
		return true
	}
	return false
}

func asFloat(v types.Value) float64 {
	if v.Type == types.TypeInteger {
		return float64(v.Int)
	}
	return v.Float
}

// coerceToColumn converts a value to the column's declared type,
// naming the column on mismatch. NULLs pass through untouched.
func coerceToColumn(v types.Value, col *catalog.Column) (types.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	if v.Type == col.Type {
		if col.Type == types.TypeString && int(col.MaxLength) > 0 && len(v.Str) > int(col.MaxLength) {
			return types.Value{}, fmt.Errorf("value too long for column '%s' (max %d)", col.Name, col.MaxLength)
		}
		return v, nil
	}
	converted, err := types.NewValue(col.Type, v.Raw())
	if err != nil {
		return types.Value{}, fmt.Errorf(
			"type mismatch for column '%s': expected %s, got %s", col.Name, col.Type, v.Type)
	}
	return converted, nil
}
