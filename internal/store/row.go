package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SearchRow is one search hit. The chapter, page and heading may arrive as
// top-level columns, inside metadata, or not at all, depending on the index.
type SearchRow struct {
	ID             string      `bun:"id" json:"id"`
	Content        string      `bun:"content" json:"content"`
	Similarity     float64     `bun:"similarity" json:"similarity"`
	ChapterNumber  FlexInt     `bun:"chapter_number" json:"chapter_number"`
	PageNumber     FlexInt     `bun:"page_number" json:"page_number"`
	ChapterHeading *string     `bun:"chapter_heading" json:"chapter_heading"`
	Metadata       RowMetadata `bun:"metadata,type:jsonb" json:"metadata"`
}

// RowMetadata is the nested metadata of a search hit.
type RowMetadata struct {
	ChapterNumber  FlexInt `json:"chapter_number"`
	PageNumber     FlexInt `json:"page_number"`
	ChapterHeading *string `json:"chapter_heading"`
}

// FlexInt is an optional integer that also accepts numeric strings.
type FlexInt struct {
	Int   int
	Valid bool
}

// IntOf returns a set FlexInt.
func IntOf(v int) FlexInt { return FlexInt{Int: v, Valid: true} }

// Ptr returns the value or nil.
func (f FlexInt) Ptr() *int {
	if !f.Valid {
		return nil
	}
	v := f.Int
	return &v
}

func (f *FlexInt) set(v any) error {
	*f = FlexInt{}
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		f.Int, f.Valid = int(x), true
	case int32:
		f.Int, f.Valid = int(x), true
	case int:
		f.Int, f.Valid = x, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
			return nil
		}
		f.Int, f.Valid = int(x), true
	case []byte:
		return f.set(string(x))
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			f.Int, f.Valid = n, true
		} else if fl, err := strconv.ParseFloat(s, 64); err == nil {
			return f.set(fl)
		}
	default:
		return fmt.Errorf("flexint: unsupported type %T", v)
	}
	return nil
}

// Scan implements sql.Scanner.
func (f *FlexInt) Scan(src any) error {
	return f.set(src)
}

// Value implements driver.Valuer.
func (f FlexInt) Value() (driver.Value, error) {
	if !f.Valid {
		return nil, nil
	}
	return int64(f.Int), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else
// leaves the value unset.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v.(type) {
	case float64, string, nil:
		return f.set(v)
	}
	*f = FlexInt{}
	return nil
}

// MarshalJSON writes the number or null.
func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.Int)), nil
}

// Scan implements sql.Scanner so jsonb metadata decodes into the struct.
func (m *RowMetadata) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		*m = RowMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(x, m)
	case string:
		return json.Unmarshal([]byte(x), m)
	}
	return fmt.Errorf("metadata: unsupported type %T", src)
}
