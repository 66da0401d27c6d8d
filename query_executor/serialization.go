package executor

import (
	"fmt"

	"pesadb/catalog"
	"pesadb/types"
)

// Row is a materialized tuple. RowID is its position within the scan
// that produced it, used to track matched rows during outer joins.
type Row struct {
	Values []types.Value
	RowID  int
}

// Serialize concatenates the value encodings; no framing, the page
// stores a 4-byte length prefix around the whole payload.
func (r *Row) Serialize() []byte {
	size := 0
	for _, v := range r.Values {
		size += v.SerializedSize()
	}
	buf := make([]byte, 0, size)
	for _, v := range r.Values {
		buf = append(buf, v.Serialize()...)
	}
	return buf
}

// DeserializeRow decodes one value per schema column. A payload shorter
// than the column count yields NULLs for the missing tail, matching
// rows written before columns were appended.
func DeserializeRow(data []byte, schema *catalog.TableSchema, rowID int) (*Row, error) {
	values := make([]types.Value, 0, len(schema.Columns))
	offset := 0
	for range schema.Columns {
		if offset >= len(data) {
			values = append(values, types.NewNull())
			continue
		}
		v, n, err := types.DeserializeValue(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("corrupt row payload: %w", err)
		}
		values = append(values, v)
		offset += n
	}
	return &Row{Values: values, RowID: rowID}, nil
}
