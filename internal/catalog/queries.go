package catalog

import (
	"errors"
	"strings"
)

// ErrUnknownQuery is returned for a sample query id that does not exist.
var ErrUnknownQuery = errors.New("catalog: unknown sample query")

// SampleUsage is a sample query as stored by the backend.
type SampleUsage struct {
	SQL         string `json:"sql"`
	Description string `json:"description"`
}

// SampleQuery is a sample query row in the editor. While Editing, changes go
// to Draft and only reach SQL on commit.
type SampleQuery struct {
	ID          int
	SQL         string
	Description string
	Editing     bool
	Draft       string
}

// SampleQueries is the editable list of sample queries.
type SampleQueries []SampleQuery

// FromUsage numbers usages from 1.
func FromUsage(usage []SampleUsage) SampleQueries {
	out := make(SampleQueries, len(usage))
	for i, u := range usage {
		out[i] = SampleQuery{ID: i + 1, SQL: u.SQL, Description: u.Description}
	}
	return out
}

// Usage converts the committed queries back to the wire form. Drafts are
// never included.
func (q SampleQueries) Usage() []SampleUsage {
	out := make([]SampleUsage, len(q))
	for i, s := range q {
		out[i] = SampleUsage{SQL: s.SQL, Description: s.Description}
	}
	return out
}

// Add appends a new query with the next id.
func (q SampleQueries) Add(sql string) (SampleQueries, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return q, ErrEmptyValue
	}
	next := 1
	for _, s := range q {
		if s.ID >= next {
			next = s.ID + 1
		}
	}
	out := q.Clone()
	return append(out, SampleQuery{ID: next, SQL: sql}), nil
}

// StartEdit opens the draft buffer for id, seeded with the committed text.
func (q SampleQueries) StartEdit(id int) (SampleQueries, error) {
	return q.update(id, func(s *SampleQuery) {
		s.Editing = true
		s.Draft = s.SQL
	})
}

// ChangeDraft replaces the draft text for id.
func (q SampleQueries) ChangeDraft(id int, text string) (SampleQueries, error) {
	return q.update(id, func(s *SampleQuery) {
		s.Draft = text
	})
}

// Commit moves the draft into the query and closes the editor.
func (q SampleQueries) Commit(id int) (SampleQueries, error) {
	return q.update(id, func(s *SampleQuery) {
		if s.Editing {
			s.SQL = s.Draft
		}
		s.Editing = false
		s.Draft = ""
	})
}

// Remove drops the query with id.
func (q SampleQueries) Remove(id int) (SampleQueries, error) {
	out := make(SampleQueries, 0, len(q))
	found := false
	for _, s := range q {
		if s.ID == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		return q, ErrUnknownQuery
	}
	return out, nil
}

// Committed drops every open draft.
func (q SampleQueries) Committed() SampleQueries {
	out := q.Clone()
	for i := range out {
		out[i].Editing = false
		out[i].Draft = ""
	}
	return out
}

// Clone returns an independent copy.
func (q SampleQueries) Clone() SampleQueries {
	return append(SampleQueries{}, q...)
}

func (q SampleQueries) update(id int, fn func(*SampleQuery)) (SampleQueries, error) {
	out := q.Clone()
	for i := range out {
		if out[i].ID == id {
			fn(&out[i])
			return out, nil
		}
	}
	return q, ErrUnknownQuery
}
