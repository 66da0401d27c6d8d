package constraints

import (
	"fmt"
	"log/slog"

	"pesadb/catalog"
	"pesadb/storage_engine/index"
	"pesadb/types"
)

// Manager enforces PRIMARY KEY and UNIQUE constraints through the
// column indexes. A violation is always surfaced as an error naming
// the offending column and key, never silently dropped.
type Manager struct {
	indexManager *index.IndexManager
	logger       *slog.Logger
}

func NewManager(im *index.IndexManager, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		indexManager: im,
		logger:       logger.With("component", "constraints"),
	}
}

// CreateConstraintIndexes builds the indexes that back a new table's
// PRIMARY KEY and UNIQUE columns.
func (m *Manager) CreateConstraintIndexes(schema *catalog.TableSchema) error {
	for i := range schema.Columns {
		col := &schema.Columns[i]
		switch {
		case col.IsPrimaryKey():
			if err := m.indexManager.CreateIndex(schema.Name, col.Name, true, true); err != nil {
				return err
			}
		case col.IsUnique():
			if err := m.indexManager.CreateIndex(schema.Name, col.Name, false, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateInsert checks a full-width row against the table's
// constraints before any page is mutated.
func (m *Manager) ValidateInsert(schema *catalog.TableSchema, row []types.Value) error {
	if err := m.checkNotNull(schema, row); err != nil {
		return err
	}
	if err := m.checkPrimaryKey(schema, row); err != nil {
		return err
	}
	return m.checkUnique(schema, row)
}

// checkNotNull covers the primary key too: schema construction forces
// NOT_NULL onto the PK column, so its message keeps the PK label.
func (m *Manager) checkNotNull(schema *catalog.TableSchema, row []types.Value) error {
	for i := range schema.Columns {
		col := &schema.Columns[i]
		if col.IsNotNull() && i < len(row) && row[i].IsNull() {
			if col.IsPrimaryKey() {
				return fmt.Errorf("column '%s' cannot be NULL (PRIMARY KEY)", col.Name)
			}
			return fmt.Errorf("column '%s' cannot be NULL", col.Name)
		}
	}
	return nil
}

func (m *Manager) checkPrimaryKey(schema *catalog.TableSchema, row []types.Value) error {
	if schema.PrimaryKey == "" {
		return nil
	}
	pkIndex := schema.ColumnIndex(schema.PrimaryKey)
	if pkIndex < 0 || pkIndex >= len(row) {
		return fmt.Errorf("row is missing primary key column '%s'", schema.PrimaryKey)
	}

	pkValue := row[pkIndex]
	if pkValue.IsNull() {
		return fmt.Errorf("column '%s' cannot be NULL (PRIMARY KEY)", schema.PrimaryKey)
	}

	_, found, err := m.indexManager.Lookup(schema.Name, schema.PrimaryKey, pkValue)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("Duplicate entry '%s' for key '%s'", pkValue.Display(), schema.PrimaryKey)
	}
	return nil
}

func (m *Manager) checkUnique(schema *catalog.TableSchema, row []types.Value) error {
	for i := range schema.Columns {
		col := &schema.Columns[i]
		if !col.IsUnique() || col.IsPrimaryKey() || i >= len(row) {
			continue
		}
		value := row[i]
		// SQL allows multiple NULLs in a UNIQUE column
		if value.IsNull() {
			continue
		}
		_, found, err := m.indexManager.Lookup(schema.Name, col.Name, value)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("Duplicate entry '%s' for key '%s'", value.Display(), col.Name)
		}
	}
	return nil
}

// ValidateUpdate re-checks only the constrained columns whose value
// actually changed between the old and new row images.
func (m *Manager) ValidateUpdate(schema *catalog.TableSchema, oldRow, newRow []types.Value) error {
	return m.ValidateUpdateBatch(schema, [][]types.Value{oldRow}, [][]types.Value{newRow})
}

// ValidateUpdateBatch validates every row of one UPDATE statement
// against the index state the statement will leave behind: keys the
// statement replaces are free to be claimed again, and two rows of the
// same statement cannot claim one key.
func (m *Manager) ValidateUpdateBatch(schema *catalog.TableSchema, oldRows, newRows [][]types.Value) error {
	for _, newRow := range newRows {
		if err := m.checkNotNull(schema, newRow); err != nil {
			return err
		}
	}

	for i := range schema.Columns {
		col := &schema.Columns[i]
		if !col.IsPrimaryKey() && !col.IsUnique() {
			continue
		}

		released := make(map[any]bool)
		for r := range oldRows {
			if i >= len(oldRows[r]) || i >= len(newRows[r]) {
				continue
			}
			oldV := oldRows[r][i]
			if !oldV.IsNull() && !oldV.Equal(newRows[r][i]) {
				released[oldV.Raw()] = true
			}
		}

		claimed := make(map[any]bool)
		for r := range newRows {
			if i >= len(newRows[r]) {
				continue
			}
			newV := newRows[r][i]
			if newV.IsNull() {
				// NOT NULL ran above; UNIQUE permits multiple NULLs.
				continue
			}
			key := newV.Raw()
			if claimed[key] {
				return fmt.Errorf("Duplicate entry '%s' for key '%s'", newV.Display(), col.Name)
			}
			claimed[key] = true

			if i < len(oldRows[r]) && oldRows[r][i].Equal(newV) {
				// The row keeps its own key.
				continue
			}
			_, found, err := m.indexManager.Lookup(schema.Name, col.Name, newV)
			if err != nil {
				return err
			}
			if found && !released[key] {
				return fmt.Errorf("Duplicate entry '%s' for key '%s'", newV.Display(), col.Name)
			}
		}
	}
	return nil
}
