package statsapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Response is the decoded body of a stats API call: a resource name and
// one or more tabular result sets.
type Response struct {
	Resource   string      `json:"resource"`
	ResultSets []ResultSet `json:"resultSets"`
}

// ResultSet is the header-list + row-list tabular payload the API
// returns. An empty RowSet is a valid response.
type ResultSet struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	RowSet  [][]any  `json:"rowSet"`
}

// Row is one result row keyed by its lower-cased column header.
type Row map[string]any

// Decode parses a response body and validates that every rowSet row
// matches its header list. A body that is not the expected shape is a
// permanent error. Callers holding a body from somewhere other than
// the client, such as a cache, must decode through here so Rows never
// sees a width-mismatched row.
func Decode(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	for _, rs := range resp.ResultSets {
		for i, row := range rs.RowSet {
			if len(row) != len(rs.Headers) {
				return nil, fmt.Errorf("%w: result set %q row %d has %d columns, header has %d",
					ErrMalformedPayload, rs.Name, i, len(row), len(rs.Headers))
			}
		}
	}
	return &resp, nil
}

// Set returns the named result set, or the first one if name is empty.
func (r *Response) Set(name string) (*ResultSet, bool) {
	if name == "" && len(r.ResultSets) > 0 {
		return &r.ResultSets[0], true
	}
	for i := range r.ResultSets {
		if r.ResultSets[i].Name == name {
			return &r.ResultSets[i], true
		}
	}
	return nil, false
}

// Rows zips headers and rowSet into keyed rows. Header keys are
// lower-cased so callers do not depend on the API's casing.
func (rs *ResultSet) Rows() []Row {
	rows := make([]Row, 0, len(rs.RowSet))
	for _, raw := range rs.RowSet {
		row := make(Row, len(rs.Headers))
		for i, h := range rs.Headers {
			row[strings.ToLower(h)] = raw[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// Str returns the column as a string, or "" when absent or null.
func (r Row) Str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Int returns the column as an int64. JSON numbers arrive as float64;
// numeric strings are tolerated because the API mixes both.
func (r Row) Int(key string) int64 {
	switch v := r[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Float returns the column as a float64, or 0 when absent or null.
func (r Row) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
