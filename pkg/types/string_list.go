package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a JSON array column usable on both postgres and sqlite.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(value interface{}) error {
	raw, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	if len(raw) == 0 {
		*s = StringList{}
		return nil
	}
	var list StringList
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	if list == nil {
		list = StringList{}
	}
	*s = list
	return nil
}
