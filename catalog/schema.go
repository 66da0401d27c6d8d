package catalog

import (
	"encoding/binary"
	"fmt"
	"strings"

	"pesadb/types"
)

/*
Schema serialization. All integers are big-endian, all strings are
length-prefixed.

	TableSchema = name_len:u8 | name | column_count:u16 | pk_len:u8 | pk
	            | next_overflow:u32 | fk_count:u8 | columns... | fks...
	Column      = name_len:u8 | name | type:u8 | constraints:u8
	            | max_length:u16 | default_len:u16 | default
	ForeignKey  = col_len:u8 | col | table_len:u8 | table
	            | ref_len:u8 | ref

Round-trip invariant: DeserializeTableSchema(s.Serialize()) == s for
every valid schema.
*/

const (
	MaxTableName  = 64
	MaxColumnName = 64
)

// Column constraint bitmask flags.
const (
	ConstraintPrimaryKey uint8 = 1 << 0
	ConstraintUnique     uint8 = 1 << 1
	ConstraintNotNull    uint8 = 1 << 2
	ConstraintForeignKey uint8 = 1 << 3
)

type Column struct {
	Name        string
	Type        types.Type
	MaxLength   uint16 // STRING only
	Constraints uint8
	Default     string // textual literal, "" means no default
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

type TableSchema struct {
	Name         string
	Columns      []Column
	PrimaryKey   string
	NextOverflow uint32
	ForeignKeys  []ForeignKey
}

func (c *Column) HasConstraint(flag uint8) bool { return c.Constraints&flag != 0 }

func (c *Column) IsPrimaryKey() bool { return c.HasConstraint(ConstraintPrimaryKey) }
func (c *Column) IsUnique() bool     { return c.HasConstraint(ConstraintUnique) }
func (c *Column) IsNotNull() bool    { return c.HasConstraint(ConstraintNotNull) }

// DefaultValue parses the stored default literal into a typed value.
// Returns a NULL value when no default is set.
func (c *Column) DefaultValue() (types.Value, error) {
	if c.Default == "" {
		return types.NewNull(), nil
	}
	return types.NewValue(c.Type, c.Default)
}

func (c *Column) serializedSize() int {
	return 1 + len(c.Name) + 1 + 1 + 2 + 2 + len(c.Default)
}

func (c *Column) serialize(buf []byte) int {
	pos := 0
	buf[pos] = byte(len(c.Name))
	pos++
	pos += copy(buf[pos:], c.Name)
	buf[pos] = byte(c.Type)
	pos++
	buf[pos] = c.Constraints
	pos++
	binary.BigEndian.PutUint16(buf[pos:], c.MaxLength)
	pos += 2
	binary.BigEndian.PutUint16(buf[pos:], uint16(len(c.Default)))
	pos += 2
	pos += copy(buf[pos:], c.Default)
	return pos
}

func deserializeColumn(data []byte) (Column, int, error) {
	var c Column
	pos := 0
	if len(data) < 1 {
		return c, 0, fmt.Errorf("truncated column record")
	}
	nameLen := int(data[pos])
	pos++
	if len(data) < pos+nameLen+6 {
		return c, 0, fmt.Errorf("truncated column record for name length %d", nameLen)
	}
	c.Name = string(data[pos : pos+nameLen])
	pos += nameLen
	c.Type = types.Type(data[pos])
	pos++
	c.Constraints = data[pos]
	pos++
	c.MaxLength = binary.BigEndian.Uint16(data[pos:])
	pos += 2
	defaultLen := int(binary.BigEndian.Uint16(data[pos:]))
	pos += 2
	if len(data) < pos+defaultLen {
		return c, 0, fmt.Errorf("truncated column default (%d bytes)", defaultLen)
	}
	c.Default = string(data[pos : pos+defaultLen])
	pos += defaultLen
	return c, pos, nil
}

// NewTableSchema validates the definition, derives the primary key
// column, and force-adds NOT NULL to a primary key column.
func NewTableSchema(name string, columns []Column, fks []ForeignKey) (*TableSchema, error) {
	if name == "" || len(name) > MaxTableName {
		return nil, fmt.Errorf("invalid table name %q (max %d chars)", name, MaxTableName)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q must have at least one column", name)
	}

	schema := &TableSchema{Name: name, Columns: columns, ForeignKeys: fks}
	seen := make(map[string]bool, len(columns))
	for i := range schema.Columns {
		col := &schema.Columns[i]
		if col.Name == "" || len(col.Name) > MaxColumnName {
			return nil, fmt.Errorf("invalid column name %q (max %d chars)", col.Name, MaxColumnName)
		}
		if seen[col.Name] {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		seen[col.Name] = true
		if col.Type == types.TypeString && col.MaxLength == 0 {
			return nil, fmt.Errorf("column %q: STRING type requires a max length", col.Name)
		}
		if col.IsPrimaryKey() {
			if schema.PrimaryKey != "" {
				return nil, fmt.Errorf("composite primary keys are not supported")
			}
			schema.PrimaryKey = col.Name
			col.Constraints |= ConstraintNotNull
		}
	}
	for _, fk := range fks {
		if !seen[fk.Column] {
			return nil, fmt.Errorf("foreign key references unknown column %q", fk.Column)
		}
	}
	return schema, nil
}

// GetColumn returns the column with the given name, or nil.
func (s *TableSchema) GetColumn(name string) *Column {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

// ColumnIndex returns the position of a column, or -1.
func (s *TableSchema) ColumnIndex(name string) int {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *TableSchema) SerializedSize() int {
	size := 1 + len(s.Name) + 2 + 1 + len(s.PrimaryKey) + 4 + 1
	for i := range s.Columns {
		size += s.Columns[i].serializedSize()
	}
	for _, fk := range s.ForeignKeys {
		size += 3 + len(fk.Column) + len(fk.RefTable) + len(fk.RefColumn)
	}
	return size
}

func (s *TableSchema) Serialize() []byte {
	buf := make([]byte, s.SerializedSize())
	pos := 0
	buf[pos] = byte(len(s.Name))
	pos++
	pos += copy(buf[pos:], s.Name)
	binary.BigEndian.PutUint16(buf[pos:], uint16(len(s.Columns)))
	pos += 2
	buf[pos] = byte(len(s.PrimaryKey))
	pos++
	pos += copy(buf[pos:], s.PrimaryKey)
	binary.BigEndian.PutUint32(buf[pos:], s.NextOverflow)
	pos += 4
	buf[pos] = byte(len(s.ForeignKeys))
	pos++
	for i := range s.Columns {
		pos += s.Columns[i].serialize(buf[pos:])
	}
	for _, fk := range s.ForeignKeys {
		for _, part := range []string{fk.Column, fk.RefTable, fk.RefColumn} {
			buf[pos] = byte(len(part))
			pos++
			pos += copy(buf[pos:], part)
		}
	}
	return buf
}

func DeserializeTableSchema(data []byte) (*TableSchema, error) {
	pos := 0
	if len(data) < 1 {
		return nil, fmt.Errorf("empty schema record")
	}
	nameLen := int(data[pos])
	pos++
	if len(data) < pos+nameLen+3 {
		return nil, fmt.Errorf("truncated schema record")
	}
	s := &TableSchema{Name: string(data[pos : pos+nameLen])}
	pos += nameLen

	colCount := int(binary.BigEndian.Uint16(data[pos:]))
	pos += 2
	pkLen := int(data[pos])
	pos++
	if len(data) < pos+pkLen+5 {
		return nil, fmt.Errorf("truncated schema record for table %q", s.Name)
	}
	s.PrimaryKey = string(data[pos : pos+pkLen])
	pos += pkLen
	s.NextOverflow = binary.BigEndian.Uint32(data[pos:])
	pos += 4
	fkCount := int(data[pos])
	pos++

	s.Columns = make([]Column, 0, colCount)
	for i := 0; i < colCount; i++ {
		col, n, err := deserializeColumn(data[pos:])
		if err != nil {
			return nil, fmt.Errorf("table %q column %d: %w", s.Name, i, err)
		}
		s.Columns = append(s.Columns, col)
		pos += n
	}

	readStr := func() (string, error) {
		if len(data) < pos+1 {
			return "", fmt.Errorf("truncated foreign key record for table %q", s.Name)
		}
		n := int(data[pos])
		pos++
		if len(data) < pos+n {
			return "", fmt.Errorf("truncated foreign key record for table %q", s.Name)
		}
		v := string(data[pos : pos+n])
		pos += n
		return v, nil
	}
	for i := 0; i < fkCount; i++ {
		var fk ForeignKey
		var err error
		if fk.Column, err = readStr(); err != nil {
			return nil, err
		}
		if fk.RefTable, err = readStr(); err != nil {
			return nil, err
		}
		if fk.RefColumn, err = readStr(); err != nil {
			return nil, err
		}
		s.ForeignKeys = append(s.ForeignKeys, fk)
	}
	return s, nil
}

// String renders the schema in DESCRIBE form.
func (s *TableSchema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\nColumns:\n", s.Name)
	for i := range s.Columns {
		col := &s.Columns[i]
		typeStr := col.Type.String()
		if col.Type == types.TypeString {
			typeStr = fmt.Sprintf("STRING(%d)", col.MaxLength)
		}
		fmt.Fprintf(&b, "  %s %s", col.Name, typeStr)
		if col.IsPrimaryKey() {
			b.WriteString(" PRIMARY KEY")
		}
		if col.IsUnique() {
			b.WriteString(" UNIQUE")
		}
		if col.IsNotNull() && !col.IsPrimaryKey() {
			b.WriteString(" NOT NULL")
		}
		if col.Default != "" {
			fmt.Fprintf(&b, " DEFAULT %s", col.Default)
		}
		if i < len(s.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	for _, fk := range s.ForeignKeys {
		fmt.Fprintf(&b, "  FOREIGN KEY (%s) REFERENCES %s(%s)\n", fk.Column, fk.RefTable, fk.RefColumn)
	}
	return b.String()
}
