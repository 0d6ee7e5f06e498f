package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Row is one result row keyed by column name.
type Row map[string]any

// ResultSet is an ordered sequence of uniform rows. Columns follows the key
// order of the first row; keys first seen in later rows are appended.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (rs ResultSet) Len() int {
	return len(rs.Rows)
}

// Cells returns row i formatted in column order.
func (rs ResultSet) Cells(i int) []string {
	row := rs.Rows[i]
	cells := make([]string, len(rs.Columns))
	for j, col := range rs.Columns {
		cells[j] = FormatValue(row[col])
	}
	return cells
}

// Field returns the formatted value of key in row i, or "" when absent.
func (rs ResultSet) Field(i int, key string) string {
	v, ok := rs.Rows[i][key]
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// MarshalJSON writes the rows back as objects in column order.
func (rs ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rs.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		written := 0
		for _, col := range rs.Columns {
			v, ok := row[col]
			if !ok {
				continue
			}
			if written > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(col)
			val, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(val)
			written++
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts an array of objects, a single object, or null.
func (rs *ResultSet) UnmarshalJSON(b []byte) error {
	*rs = ResultSet{}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("result set: %w", err)
	}
	seen := map[string]bool{}

	switch tok {
	case nil:
		return nil
	case json.Delim('{'):
		row, err := rs.readObject(dec, seen)
		if err != nil {
			return err
		}
		rs.Rows = append(rs.Rows, row)
		return nil
	case json.Delim('['):
		for dec.More() {
			t, err := dec.Token()
			if err != nil {
				return fmt.Errorf("result set: %w", err)
			}
			if t != json.Delim('{') {
				return fmt.Errorf("result set: expected object row, got %v", t)
			}
			row, err := rs.readObject(dec, seen)
			if err != nil {
				return err
			}
			rs.Rows = append(rs.Rows, row)
		}
		if _, err := dec.Token(); err != nil && err != io.EOF {
			return fmt.Errorf("result set: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("result set: unexpected token %v", tok)
	}
}

// readObject consumes one object after its opening brace.
func (rs *ResultSet) readObject(dec *json.Decoder, seen map[string]bool) (Row, error) {
	row := Row{}
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("result set: %w", err)
		}
		key, ok := t.(string)
		if !ok {
			return nil, fmt.Errorf("result set: expected key, got %v", t)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("result set: column %q: %w", key, err)
		}
		row[key] = v
		if !seen[key] {
			seen[key] = true
			rs.Columns = append(rs.Columns, key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("result set: %w", err)
	}
	return row, nil
}

// FormatValue renders a decoded JSON value for display.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool, float64, int, int64:
		return fmt.Sprintf("%v", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
