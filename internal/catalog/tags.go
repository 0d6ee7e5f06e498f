package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicate is returned when a value is already in a list.
	ErrDuplicate = errors.New("catalog: duplicate value")

	// ErrEmptyValue is returned when adding a blank value.
	ErrEmptyValue = errors.New("catalog: empty value")
)

// DuplicateError carries the rejected value for the user-facing notice.
type DuplicateError struct {
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("'%s' is already in the list.", e.Value)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// TagList is an ordered list of unique strings.
type TagList []string

// Add appends v. Blank and duplicate values leave the list unchanged.
func (l TagList) Add(v string) (TagList, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return l, ErrEmptyValue
	}
	for _, existing := range l {
		if existing == v {
			return l, &DuplicateError{Value: v}
		}
	}
	out := make(TagList, len(l), len(l)+1)
	copy(out, l)
	return append(out, v), nil
}

// Remove drops the value at index i. Out-of-range indices are ignored.
func (l TagList) Remove(i int) TagList {
	if i < 0 || i >= len(l) {
		return l
	}
	out := make(TagList, 0, len(l)-1)
	out = append(out, l[:i]...)
	return append(out, l[i+1:]...)
}

// Clone returns an independent copy.
func (l TagList) Clone() TagList {
	if l == nil {
		return TagList{}
	}
	return append(TagList{}, l...)
}

// Strings returns the list as a plain slice, never nil.
func (l TagList) Strings() []string {
	return []string(l.Clone())
}
