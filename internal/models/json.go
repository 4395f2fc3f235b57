package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON type for flexible metadata storage
type JSON map[string]interface{}

// NewJSON wraps a plain map as a JSON value.
func NewJSON(m map[string]interface{}) JSON {
	if m == nil {
		return JSON{}
	}
	return JSON(m)
}

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &j)
}

// MarshalJSON returns the JSON encoding
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]interface{}(j))
}

// UnmarshalJSON sets the JSON encoding
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("nil pointer")
	}
	return json.Unmarshal(data, (*map[string]interface{})(j))
}

// Validate checks that every value is a string, number, bool, null or a
// nested map of the same shape. Unknown keys pass through untouched; only
// the value kinds are constrained.
func (j JSON) Validate() error {
	for key, val := range j {
		if err := validateMetadataValue(val); err != nil {
			return fmt.Errorf("metadata key %q: %w", key, err)
		}
	}
	return nil
}

func validateMetadataValue(v interface{}) error {
	switch val := v.(type) {
	case nil, string, bool, float64, int, int64, json.Number:
		return nil
	case map[string]interface{}:
		return JSON(val).Validate()
	case JSON:
		return val.Validate()
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}
