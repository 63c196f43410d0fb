// Package attrs loads per-category surface attribute tables and merges
// their main/derived/kinematics variants into a single table per category.
package attrs

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Variant identifies which flavor of attribute table a CSV file carries.
// Merge priority is main > derived > kinematics: a column loaded by an
// earlier variant is never overwritten by a later one.
type Variant string

const (
	VariantMain       Variant = "main"
	VariantDerived    Variant = "derived"
	VariantKinematics Variant = "kinematics"
)

// priority returns the merge rank of the variant; lower loads first.
func (v Variant) priority() int {
	switch v {
	case VariantMain:
		return 0
	case VariantDerived:
		return 1
	case VariantKinematics:
		return 2
	default:
		return 3
	}
}

// ErrMissingIDColumn is returned when a table has no surface-id column.
var ErrMissingIDColumn = errors.New("attribute table has no id column")

// Source is one attribute CSV to merge, tagged with its variant.
type Source struct {
	Variant Variant
	Data    []byte
}

// Row is an ordered column→value mapping for one surface id. Column order
// is preserved from the source tables, main-variant columns first.
type Row struct {
	columns []string
	values  map[string]string
}

// Get returns the value of a column, if present.
func (r Row) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Columns returns the column names in load order.
func (r Row) Columns() []string {
	return r.columns
}

// Len returns the number of columns in the row.
func (r Row) Len() int {
	return len(r.columns)
}

// add inserts a column unless it is already present (first-loaded wins).
func (r *Row) add(name, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, exists := r.values[name]; exists {
		return
	}
	r.columns = append(r.columns, name)
	r.values[name] = value
}

// MarshalJSON encodes the row as a JSON object with columns in load order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Table maps surface ids to their merged attribute rows.
type Table struct {
	rows  map[string]*Row
	order []string
}

// Lookup returns the row for a surface id. A miss is not an error: the
// surface simply has no attributes.
func (t *Table) Lookup(id string) (Row, bool) {
	if t == nil {
		return Row{}, false
	}
	row, ok := t.rows[id]
	if !ok {
		return Row{}, false
	}
	return *row, true
}

// IDs returns the surface ids in first-seen order.
func (t *Table) IDs() []string {
	if t == nil {
		return nil
	}
	return t.order
}

// Len returns the number of rows in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Merge loads the given sources in variant priority order and unions their
// columns per surface id, never overwriting a column loaded earlier. The
// idColumn names the CSV column holding the surface id. Rows whose id has
// no parsed geometry are retained; the join happens at assembly time.
func Merge(idColumn string, sources []Source) (*Table, error) {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Variant.priority() < ordered[j].Variant.priority()
	})

	table := &Table{rows: make(map[string]*Row)}
	for _, src := range ordered {
		if err := mergeSource(table, idColumn, src); err != nil {
			return nil, fmt.Errorf("merging %s table: %w", src.Variant, err)
		}
	}
	return table, nil
}

func mergeSource(table *Table, idColumn string, src Source) error {
	reader := csv.NewReader(bytes.NewReader(src.Data))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	header := records[0]
	idIdx := -1
	for i, name := range header {
		if name == idColumn {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return fmt.Errorf("%w: %q", ErrMissingIDColumn, idColumn)
	}

	for _, record := range records[1:] {
		if idIdx >= len(record) {
			continue
		}
		id := record[idIdx]
		if id == "" {
			continue
		}

		row, ok := table.rows[id]
		if !ok {
			row = &Row{}
			table.rows[id] = row
			table.order = append(table.order, id)
		}
		for i, name := range header {
			if i == idIdx || i >= len(record) {
				continue
			}
			row.add(name, record[i])
		}
	}
	return nil
}
