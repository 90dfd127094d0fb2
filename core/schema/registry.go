package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"carte-manager/core/database"

	"gorm.io/gorm"
)

// TableSchema describes one journaled table: which column addresses rows,
// which columns a snapshot may capture, and which must never be written
// back by a compensating update.
type TableSchema struct {
	// Name is the table name.
	Name string
	// PrimaryKey is the primary key column.
	PrimaryKey string
	// MutableColumns are the columns snapshots may capture and restore.
	MutableColumns []string
	// ExcludedColumns are dropped from every compensating write
	// (primary key, duplicate-detection hash).
	ExcludedColumns []string
	// DateColumns are the mutable columns holding timestamps. Snapshot
	// decode restores them as typed dates; any other string stays text,
	// even one that happens to look like a date.
	DateColumns []string
}

// IsMutable reports whether the column may appear in a snapshot.
func (s TableSchema) IsMutable(col string) bool {
	return slices.Contains(s.MutableColumns, col)
}

// IsExcluded reports whether the column is barred from compensating writes.
func (s TableSchema) IsExcluded(col string) bool {
	return col == s.PrimaryKey || slices.Contains(s.ExcludedColumns, col)
}

// IsDate reports whether the column holds a timestamp.
func (s TableSchema) IsDate(col string) bool {
	return slices.Contains(s.DateColumns, col)
}

// DecodeSnapshot parses a JSON before/after snapshot into a typed changeset.
// Unknown columns are rejected rather than silently dropped: a snapshot
// naming a column the schema does not know is corrupt or from another
// schema version, and replaying it would be unsafe.
func (s TableSchema) DecodeSnapshot(raw json.RawMessage) (Changeset, error) {
	var cols map[string]Value
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, fmt.Errorf("malformed snapshot for table %s: %w", s.Name, err)
	}

	out := make(Changeset, len(cols))
	for col, val := range cols {
		if col != s.PrimaryKey && !s.IsMutable(col) {
			return nil, fmt.Errorf("snapshot column %q is not registered for table %s", col, s.Name)
		}
		if val.Kind == KindText && s.IsDate(col) {
			d, ok := parseDate(val.Text)
			if !ok {
				return nil, fmt.Errorf("snapshot column %q of table %s holds unparseable date %q", col, s.Name, val.Text)
			}
			val = DateValue(d)
		}
		out[col] = val
	}
	return out, nil
}

// Compensation returns the changeset with every excluded column removed,
// ready to be written back by an undo. Returns an error when nothing
// remains, which means the snapshot held only protected columns.
func (s TableSchema) Compensation(c Changeset) (Changeset, error) {
	out := make(Changeset, len(c))
	for col, val := range c {
		if s.IsExcluded(col) {
			continue
		}
		out[col] = val
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no restorable columns remain for table %s", s.Name)
	}
	return out, nil
}

// Registry holds the schemas of every journaled table. The journal resolves
// table names through it instead of templating identifiers from strings.
type Registry struct {
	tables map[string]TableSchema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]TableSchema)}
}

// Register adds a table schema. Registering the same name twice panics,
// since that is a wiring bug.
func (r *Registry) Register(s TableSchema) {
	if _, exists := r.tables[s.Name]; exists {
		panic(fmt.Sprintf("schema: table %s registered twice", s.Name))
	}
	r.tables[s.Name] = s
}

// Lookup finds the schema of a journaled table.
func (r *Registry) Lookup(name string) (TableSchema, bool) {
	s, ok := r.tables[name]
	return s, ok
}

// Verify checks each registered table against the live database schema and
// reports columns the registry expects but the table lacks.
func (r *Registry) Verify(db *gorm.DB) error {
	var problems []string

	for name, s := range r.tables {
		cols, err := database.GetTableColumns(db, name)
		if err != nil {
			return err
		}

		present := make(map[string]bool, len(cols))
		for _, col := range cols {
			present[col.Field] = true
		}

		if !present[s.PrimaryKey] {
			problems = append(problems, fmt.Sprintf("%s: missing primary key column %s", name, s.PrimaryKey))
		}
		for _, col := range s.MutableColumns {
			if !present[col] {
				problems = append(problems, fmt.Sprintf("%s: missing column %s", name, col))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("schema verification failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
