package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes from a JSON string, number or null. Identifiers such
// as project_id are not consistently typed by the backend.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexInt decodes from a JSON number, numeric string or null.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("flex int: %w", err)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if n == "" {
		*f = 0
		return nil
	}
	i, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return fmt.Errorf("flex int: %w", err)
	}
	*f = FlexInt(i)
	return nil
}

// FlexBool decodes booleans that may arrive as true/false, 0/1 or
// "YES"/"NO" style strings.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("flex bool: %w", err)
	}
	switch t := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = FlexBool(t)
	case float64:
		*f = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true", "1":
			*f = true
		default:
			*f = false
		}
	default:
		*f = false
	}
	return nil
}
