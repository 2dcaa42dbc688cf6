package model

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strings"
)

// StringSlice is stored as a single comma joined column. No element may
// contain a comma.
type StringSlice []string

// GormDataType keeps the column a plain text column on every dialect
func (StringSlice) GormDataType() string {
	return "text"
}

// Value implements the driver.Valuer interface.
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "", nil
	}

	for _, v := range s {
		if strings.Contains(v, ",") {
			return "", fmt.Errorf("unsafe string, %s", v)
		}
	}

	return strings.Join(s, ","), nil
}

// Scan implements the sql.Scanner interface.
func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	str, ok := value.(string)
	if !ok {
		b, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan StringSlice, %v", value)
		}

		str = string(b)
	}

	if str == "" {
		*s = []string{}
	} else {
		*s = strings.Split(str, ",")
	}

	return nil
}

// ParseTags splits a user provided comma separated tag list, dropping
// empty entries and duplicates
func ParseTags(raw string) StringSlice {
	out := StringSlice{}
	for _, t := range strings.Split(raw, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || len(t) > 32 {
			continue
		}

		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}

	return out
}
