package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Type identifies the SQL data type carried by a Value.
type Type uint8

const (
	TypeInteger   Type = 1
	TypeFloat     Type = 2
	TypeDouble    Type = 3
	TypeString    Type = 4
	TypeBoolean   Type = 5
	TypeTimestamp Type = 6
	TypeNull      Type = 7
)

// TimestampLayout is the textual format accepted for TIMESTAMP literals.
const TimestampLayout = "2006-01-02 15:04:05"

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeString:
		return "STRING"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeNull:
		return "NULL"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// TypeFromByte validates a serialized type tag.
func TypeFromByte(b byte) (Type, error) {
	t := Type(b)
	if t < TypeInteger || t > TypeNull {
		return 0, fmt.Errorf("unknown type byte: %d", b)
	}
	return t, nil
}

/*
Value is the tagged union over all supported SQL types.

On-disk encoding (big-endian, type byte first):

	INTEGER    [type:1][int32:4]            5 bytes
	FLOAT      [type:1][float32:4]          5 bytes
	DOUBLE     [type:1][float64:8]          9 bytes
	BOOLEAN    [type:1][0|1:1]              2 bytes
	TIMESTAMP  [type:1][unix seconds f64:8] 9 bytes
	STRING     [type:1][len:2][utf8 bytes]  3+n bytes
	NULL       [type:1]                     1 byte
*/
type Value struct {
	Type Type

	Int   int64
	Float float64
	Str   string
	Bool  bool
	Time  time.Time
}

func NewNull() Value                   { return Value{Type: TypeNull} }
func NewInteger(v int64) Value         { return Value{Type: TypeInteger, Int: v} }
func NewFloat(v float64) Value         { return Value{Type: TypeFloat, Float: v} }
func NewDouble(v float64) Value        { return Value{Type: TypeDouble, Float: v} }
func NewString(v string) Value         { return Value{Type: TypeString, Str: v} }
func NewBoolean(v bool) Value          { return Value{Type: TypeBoolean, Bool: v} }
func NewTimestamp(v time.Time) Value   { return Value{Type: TypeTimestamp, Time: v.Truncate(time.Second)} }

// NewValue coerces an arbitrary Go value into the target type.
// Mirrors SQL-side implicit conversion: numeric strings become numbers,
// "true"/"1"/"yes" become booleans, timestamp strings are parsed with
// TimestampLayout.
func NewValue(target Type, v any) (Value, error) {
	if v == nil {
		return NewNull(), nil
	}

	switch target {
	case TypeNull:
		return NewNull(), nil

	case TypeInteger:
		switch x := v.(type) {
		case int:
			return NewInteger(int64(x)), nil
		case int32:
			return NewInteger(int64(x)), nil
		case int64:
			return NewInteger(x), nil
		case float64:
			return NewInteger(int64(x)), nil
		case float32:
			return NewInteger(int64(x)), nil
		case bool:
			if x {
				return NewInteger(1), nil
			}
			return NewInteger(0), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("cannot convert %q to INTEGER: %w", x, err)
			}
			return NewInteger(n), nil
		}

	case TypeFloat, TypeDouble:
		var f float64
		switch x := v.(type) {
		case int:
			f = float64(x)
		case int64:
			f = float64(x)
		case float32:
			f = float64(x)
		case float64:
			f = x
		case string:
			var err error
			f, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return Value{}, fmt.Errorf("cannot convert %q to %s: %w", x, target, err)
			}
		default:
			return Value{}, fmt.Errorf("cannot convert %T to %s", v, target)
		}
		return Value{Type: target, Float: f}, nil

	case TypeString:
		switch x := v.(type) {
		case string:
			return NewString(x), nil
		default:
			return NewString(fmt.Sprintf("%v", x)), nil
		}

	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return NewBoolean(x), nil
		case int:
			return NewBoolean(x != 0), nil
		case int64:
			return NewBoolean(x != 0), nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "t", "1", "yes":
				return NewBoolean(true), nil
			default:
				return NewBoolean(false), nil
			}
		}

	case TypeTimestamp:
		switch x := v.(type) {
		case time.Time:
			return NewTimestamp(x), nil
		case string:
			ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(x), time.Local)
			if err != nil {
				return Value{}, fmt.Errorf("cannot convert %q to TIMESTAMP: %w", x, err)
			}
			return NewTimestamp(ts), nil
		case int:
			return NewTimestamp(time.Unix(int64(x), 0)), nil
		case int64:
			return NewTimestamp(time.Unix(x, 0)), nil
		case float64:
			sec, frac := math.Modf(x)
			return NewTimestamp(time.Unix(int64(sec), int64(frac*1e9))), nil
		}
	}

	return Value{}, fmt.Errorf("cannot convert %T to %s", v, target)
}

// IsNull reports whether the value is the NULL value.
func (v Value) IsNull() bool { return v.Type == TypeNull }

// SerializedSize returns the exact number of bytes Serialize will emit.
func (v Value) SerializedSize() int {
	switch v.Type {
	case TypeInteger, TypeFloat:
		return 5
	case TypeDouble, TypeTimestamp:
		return 9
	case TypeBoolean:
		return 2
	case TypeString:
		return 3 + len(v.Str)
	default:
		return 1
	}
}

// Serialize encodes the value in its on-disk format.
func (v Value) Serialize() []byte {
	out := make([]byte, v.SerializedSize())
	out[0] = byte(v.Type)

	switch v.Type {
	case TypeInteger:
		binary.BigEndian.PutUint32(out[1:], uint32(int32(v.Int)))
	case TypeFloat:
		binary.BigEndian.PutUint32(out[1:], math.Float32bits(float32(v.Float)))
	case TypeDouble:
		binary.BigEndian.PutUint64(out[1:], math.Float64bits(v.Float))
	case TypeBoolean:
		if v.Bool {
			out[1] = 1
		}
	case TypeTimestamp:
		sec := float64(v.Time.Unix()) + float64(v.Time.Nanosecond())/1e9
		binary.BigEndian.PutUint64(out[1:], math.Float64bits(sec))
	case TypeString:
		binary.BigEndian.PutUint16(out[1:], uint16(len(v.Str)))
		copy(out[3:], v.Str)
	}

	return out
}

// DeserializeValue decodes one value from the front of data and returns
// it together with the number of bytes consumed.
func DeserializeValue(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return NewNull(), 0, nil
	}

	t, err := TypeFromByte(data[0])
	if err != nil {
		return Value{}, 0, err
	}

	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("truncated %s value: have %d bytes, need %d", t, len(data), n)
		}
		return nil
	}

	switch t {
	case TypeNull:
		return NewNull(), 1, nil

	case TypeInteger:
		if err := need(5); err != nil {
			return Value{}, 0, err
		}
		return NewInteger(int64(int32(binary.BigEndian.Uint32(data[1:])))), 5, nil

	case TypeFloat:
		if err := need(5); err != nil {
			return Value{}, 0, err
		}
		return NewFloat(float64(math.Float32frombits(binary.BigEndian.Uint32(data[1:])))), 5, nil

	case TypeDouble:
		if err := need(9); err != nil {
			return Value{}, 0, err
		}
		return NewDouble(math.Float64frombits(binary.BigEndian.Uint64(data[1:]))), 9, nil

	case TypeBoolean:
		if err := need(2); err != nil {
			return Value{}, 0, err
		}
		return NewBoolean(data[1] != 0), 2, nil

	case TypeTimestamp:
		if err := need(9); err != nil {
			return Value{}, 0, err
		}
		sec := math.Float64frombits(binary.BigEndian.Uint64(data[1:]))
		whole, frac := math.Modf(sec)
		return NewTimestamp(time.Unix(int64(whole), int64(frac*1e9))), 9, nil

	case TypeString:
		if err := need(3); err != nil {
			return Value{}, 0, err
		}
		n := int(binary.BigEndian.Uint16(data[1:]))
		if err := need(3 + n); err != nil {
			return Value{}, 0, err
		}
		return NewString(string(data[3 : 3+n])), 3 + n, nil
	}

	return Value{}, 0, fmt.Errorf("cannot deserialize type %s", t)
}

func (v Value) isNumeric() bool {
	return v.Type == TypeInteger || v.Type == TypeFloat || v.Type == TypeDouble
}

func (v Value) asFloat() float64 {
	if v.Type == TypeInteger {
		return float64(v.Int)
	}
	return v.Float
}

// Compare evaluates `v op other` for op in =,!=,<,<=,>,>=.
//
// NULL handling follows the engine's equality convention: NULL = NULL is
// true, NULL != x is true unless both sides are NULL, and every ordering
// comparison involving NULL is false. Mixed numeric types coerce to
// double; any other type mismatch compares false.
func (v Value) Compare(other Value, op string) bool {
	if v.IsNull() || other.IsNull() {
		switch op {
		case "=":
			return v.IsNull() && other.IsNull()
		case "!=":
			return !(v.IsNull() && other.IsNull())
		default:
			return false
		}
	}

	if v.Type != other.Type {
		if v.isNumeric() && other.isNumeric() {
			return compareOrdered(v.asFloat(), other.asFloat(), op)
		}
		return false
	}

	switch v.Type {
	case TypeInteger:
		return compareOrdered(v.Int, other.Int, op)
	case TypeFloat, TypeDouble:
		return compareOrdered(v.Float, other.Float, op)
	case TypeString:
		return compareOrdered(v.Str, other.Str, op)
	case TypeBoolean:
		a, b := 0, 0
		if v.Bool {
			a = 1
		}
		if other.Bool {
			b = 1
		}
		return compareOrdered(a, b, op)
	case TypeTimestamp:
		return compareOrdered(v.Time.Unix(), other.Time.Unix(), op)
	}

	return false
}

func compareOrdered[T int | int64 | float64 | string](a, b T, op string) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// Equal is strict equality: same type, same payload. Used by schema and
// constraint code where coercing comparison would be wrong.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeNull:
		return true
	case TypeInteger:
		return v.Int == other.Int
	case TypeFloat, TypeDouble:
		return v.Float == other.Float
	case TypeString:
		return v.Str == other.Str
	case TypeBoolean:
		return v.Bool == other.Bool
	case TypeTimestamp:
		return v.Time.Equal(other.Time)
	}
	return false
}

// Raw returns the comparable Go payload, usable as a hash-join map key.
func (v Value) Raw() any {
	switch v.Type {
	case TypeInteger:
		return v.Int
	case TypeFloat, TypeDouble:
		return v.Float
	case TypeString:
		return v.Str
	case TypeBoolean:
		return v.Bool
	case TypeTimestamp:
		return v.Time.Unix()
	}
	return nil
}

func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return strconv.FormatInt(v.Int, 10)
	case TypeFloat, TypeDouble:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TypeString:
		return "'" + v.Str + "'"
	case TypeBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeTimestamp:
		return "'" + v.Time.Format(TimestampLayout) + "'"
	}
	return "?"
}

// Display is String without the quoting, for result-set formatting.
func (v Value) Display() string {
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeTimestamp:
		return v.Time.Format(TimestampLayout)
	default:
		return v.String()
	}
}
