package ranking

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Row is one barrier record with values coerced by AutoType.
type Row map[string]any

// identity columns in order of preference
var idColumns = []string{"id", "sarpid", "SARPID", "sarpuniqueid", "SARPUniqueID"}

func (r Row) ID() string {
	for _, c := range idColumns {
		if v, ok := r[c]; ok && v != nil {
			s, _ := r.Code(c)
			return s
		}
	}
	return ""
}

// Code renders a value the way filter domains spell codes.
func (r Row) Code(field string) (string, bool) {
	switch v := r[field].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case time.Time:
		return v.Format(time.RFC3339), true
	default:
		return fmt.Sprint(v), true
	}
}

func (r Row) Float(field string) (float64, bool) {
	f, ok := r[field].(float64)
	return f, ok
}

// MarshalJSON writes non-finite numbers as null.
func (r Row) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r))
	for k, v := range r {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			m[k] = nil
			continue
		}
		m[k] = v
	}
	return json.Marshal(m)
}

type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

func (t Table) Len() int { return len(t.Rows) }

func (t Table) Find(id string) (Row, bool) {
	for _, r := range t.Rows {
		if r.ID() == id {
			return r, true
		}
	}
	return nil, false
}

// ParseCSV reads a header row followed by records, coercing each cell with AutoType.
func ParseCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("read csv header: %w", err)
	}
	cols := make([]string, len(header))
	copy(cols, header)
	if len(cols) > 0 {
		cols[0] = strings.TrimPrefix(cols[0], "\ufeff")
	}

	t := Table{Columns: cols}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read csv line %d: %w", len(t.Rows)+2, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = AutoType(rec[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

var dateRe = regexp.MustCompile(`^([-+]\d{2})?\d{4}(-\d{2}(-\d{2})?)?(T\d{2}:\d{2}(:\d{2}(\.\d{3})?)?(Z|[-+]\d{2}:\d{2})?)?$`)

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// AutoType infers a cell's type: "" is nil, "true"/"false" are booleans,
// "NaN" and numeric text are float64, ISO 8601 dates are time.Time and
// anything else stays a string.
func AutoType(s string) any {
	v := strings.TrimSpace(s)
	switch v {
	case "":
		return nil
	case "true":
		return true
	case "false":
		return false
	case "NaN":
		return math.NaN()
	}
	if isNumeric(v) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if strings.Contains(v, "-") && dateRe.MatchString(v) {
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts
			}
		}
	}
	return s
}

// isNumeric rejects spellings ParseFloat accepts but that are not plain numbers.
func isNumeric(v string) bool {
	lower := strings.ToLower(strings.TrimLeft(v, "+-"))
	if lower == "" || strings.HasPrefix(lower, "inf") || strings.HasPrefix(lower, "nan") || strings.ContainsRune(lower, '_') {
		return false
	}
	return !strings.HasPrefix(lower, "0x")
}
