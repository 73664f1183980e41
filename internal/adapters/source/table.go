package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	nullToken  = `\N`
	dateLayout = "2006-01-02"
)

// table is one parsed CSV file addressed by header name.
type table struct {
	name   string
	header map[string]int
	rows   [][]string
}

func readTable(path, name string, required []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: table %s: file %s not found", ErrSchema, name, path)
		}
		return nil, fmt.Errorf("%w: table %s: %v", ErrSchema, name, err)
	}
	defer func() { _ = f.Close() }()
	return parseTable(f, name, required)
}

func parseTable(r io.Reader, name string, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: table %s: read header: %v", ErrSchema, name, err)
	}
	t := &table{name: name, header: make(map[string]int, len(head))}
	for i, h := range head {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := t.header[h]; !dup {
			t.header[h] = i
		}
	}
	for _, col := range required {
		if !t.has(col) {
			return nil, fmt.Errorf("%w: table %s: missing column %q", ErrSchema, name, col)
		}
	}

	t.rows, err = cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: table %s: %v", ErrSchema, name, err)
	}
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.header[col]
	return ok
}

// row is a record view with typed accessors. Absent columns read as null.
type row struct {
	t   *table
	rec []string
}

func (t *table) each(fn func(r row)) {
	for _, rec := range t.rows {
		fn(row{t: t, rec: rec})
	}
}

func (r row) str(col string) string {
	i, ok := r.t.header[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	v := strings.TrimSpace(r.rec[i])
	if v == nullToken {
		return ""
	}
	return v
}

func (r row) intVal(col string) (int, bool) {
	v := r.str(col)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r row) intPtr(col string) *int {
	n, ok := r.intVal(col)
	if !ok {
		return nil
	}
	return &n
}

func (r row) int64Ptr(col string) *int64 {
	v := r.str(col)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func (r row) floatVal(col string) float64 {
	v := r.str(col)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func (r row) date(col string) time.Time {
	v := r.str(col)
	if v == "" {
		return time.Time{}
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}
	}
	return d
}

func (r row) flag(col string) bool {
	switch strings.ToLower(r.str(col)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// blank reports whether every listed column is null.
func (r row) blank(cols ...string) bool {
	for _, c := range cols {
		if r.str(c) != "" {
			return false
		}
	}
	return true
}

// keys reads the identity columns of a row; ok is false if any is unusable.
func (r row) keys(cols ...string) ([]int, bool) {
	out := make([]int, len(cols))
	for i, c := range cols {
		n, ok := r.intVal(c)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}
