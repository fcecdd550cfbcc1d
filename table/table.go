// Package table merges scraped records with previously exported data and
// serializes the result.
package table

import (
	"sort"
	"strconv"

	"github.com/use-agent/shelfscan/models"
)

// PreferredColumns lead every export, in this order, when present.
var PreferredColumns = []string{
	models.FieldName,
	models.FieldSKU,
	models.FieldPrice,
	models.FieldBrand,
	models.FieldCompatibleBrands,
	models.FieldAvailability,
	models.FieldProductDetails,
	models.FieldDescription,
	models.FieldURL,
}

// Table is a column-ordered set of rows. A cell is missing when its key is
// absent; cell values are string, float64, int64 or bool.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// New returns an empty table.
func New() *Table { return &Table{} }

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds row and registers any unseen columns in first-seen order.
func (t *Table) Append(row map[string]any) {
	known := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		known[c] = struct{}{}
	}
	// Sorted so first-seen order does not depend on map iteration.
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := known[k]; !ok {
			t.Columns = append(t.Columns, k)
			known[k] = struct{}{}
		}
	}
	t.Rows = append(t.Rows, row)
}

// FromRecords converts extracted records to a table.
func FromRecords(records []*models.Record) *Table {
	t := New()
	for _, r := range records {
		t.Append(r.Row())
	}
	return t
}

// Merge returns existing's rows followed by fresh's rows over the union of
// both column sets. Neither input is modified.
func Merge(existing, fresh *Table) *Table {
	out := New()
	for _, src := range []*Table{existing, fresh} {
		if src == nil {
			continue
		}
		for _, c := range src.Columns {
			out.addColumn(c)
		}
		for _, row := range src.Rows {
			cp := make(map[string]any, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out.Append(cp)
		}
	}
	return out
}

func (t *Table) addColumn(c string) {
	for _, have := range t.Columns {
		if have == c {
			return
		}
	}
	t.Columns = append(t.Columns, c)
}

// Normalize prepares the table for export: empty strings become missing,
// columns with no values are dropped, the remaining missing cells are set
// to "" and columns are put in export order.
func (t *Table) Normalize() {
	present := make(map[string]bool, len(t.Columns))
	for _, row := range t.Rows {
		for k, v := range row {
			if isMissing(v) {
				delete(row, k)
				continue
			}
			present[k] = true
		}
	}

	kept := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if present[c] {
			kept = append(kept, c)
		}
	}
	t.Columns = OrderColumns(kept)

	for _, row := range t.Rows {
		for _, c := range t.Columns {
			if _, ok := row[c]; !ok {
				row[c] = ""
			}
		}
	}
}

// OrderColumns returns the preferred columns that are present, followed by
// the rest sorted alphabetically.
func OrderColumns(cols []string) []string {
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}

	out := make([]string, 0, len(cols))
	preferred := make(map[string]bool, len(PreferredColumns))
	for _, p := range PreferredColumns {
		preferred[p] = true
		if have[p] {
			out = append(out, p)
		}
	}

	var rest []string
	seen := make(map[string]bool)
	for _, c := range cols {
		if !preferred[c] && !seen[c] {
			rest = append(rest, c)
			seen[c] = true
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func isMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}

// CellString renders one cell for text formats.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}
