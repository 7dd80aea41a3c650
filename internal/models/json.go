package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON is a jsonb-backed open map for provider responses and metadata.
type JSON map[string]interface{}

// NewJSON copies a plain map into a JSON value, so mutating the result
// never reaches through to the caller's map.
func NewJSON(m map[string]interface{}) JSON {
	j := make(JSON, len(m))
	for k, v := range m {
		j[k] = v
	}
	return j
}

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("jsonb scan: expected []byte")
	}
	return json.Unmarshal(bytes, j)
}

// GetString returns a string value for key, or "" when absent.
func (j JSON) GetString(key string) string {
	if j == nil {
		return ""
	}
	if s, ok := j[key].(string); ok {
		return s
	}
	return ""
}

// GetUint returns a numeric value for key as uint. JSON numbers decode as
// float64, so both forms are accepted.
func (j JSON) GetUint(key string) uint {
	if j == nil {
		return 0
	}
	switch v := j[key].(type) {
	case float64:
		return uint(v)
	case int:
		return uint(v)
	case uint:
		return v
	}
	return 0
}

// StringSlice is a jsonb-backed string array (fraud flags).
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("jsonb scan: expected []byte")
	}
	return json.Unmarshal(bytes, s)
}
