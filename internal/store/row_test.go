package store

import (
	"encoding/json"
	"testing"
)

func TestFlexInt_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in    string
		want  int
		valid bool
	}{
		{`7`, 7, true},
		{`"12"`, 12, true},
		{`" 3 "`, 3, true},
		{`"4.0"`, 4, true},
		{`null`, 0, false},
		{`"chapter one"`, 0, false},
		{`4.5`, 0, false},
		{`true`, 0, false},
		{`{"n":1}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f FlexInt
			if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if f.Valid != tt.valid || f.Int != tt.want {
				t.Errorf("got %+v, want {Int:%d Valid:%v}", f, tt.want, tt.valid)
			}
		})
	}
}

func TestFlexInt_Scan(t *testing.T) {
	var f FlexInt
	if err := f.Scan(int64(9)); err != nil || f.Ptr() == nil || *f.Ptr() != 9 {
		t.Errorf("Scan(int64) = %+v, %v", f, err)
	}
	if err := f.Scan([]byte("15")); err != nil || !f.Valid || f.Int != 15 {
		t.Errorf("Scan([]byte) = %+v, %v", f, err)
	}
	if err := f.Scan(nil); err != nil || f.Valid {
		t.Errorf("Scan(nil) = %+v, %v", f, err)
	}
	if err := f.Scan(struct{}{}); err == nil {
		t.Error("Scan(struct) error = nil, want error")
	}
}

func TestRowMetadata_Scan(t *testing.T) {
	var m RowMetadata
	if err := m.Scan([]byte(`{"chapter_number":"2","page_number":14,"chapter_heading":" The Storm "}`)); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !m.ChapterNumber.Valid || m.ChapterNumber.Int != 2 {
		t.Errorf("ChapterNumber = %+v", m.ChapterNumber)
	}
	if !m.PageNumber.Valid || m.PageNumber.Int != 14 {
		t.Errorf("PageNumber = %+v", m.PageNumber)
	}
	if m.ChapterHeading == nil || *m.ChapterHeading != " The Storm " {
		t.Errorf("ChapterHeading = %v", m.ChapterHeading)
	}
}

func TestBook_WantsPersonas(t *testing.T) {
	for cat, want := range map[string]bool{
		"fiction":     true,
		"Children":    true,
		"non_fiction": false,
		"":            false,
	} {
		b := &Book{Category: cat}
		if got := b.WantsPersonas(); got != want {
			t.Errorf("WantsPersonas(%q) = %v, want %v", cat, got, want)
		}
	}
}

func TestIsChildAudience(t *testing.T) {
	tests := []struct {
		category, ageGroup string
		want               bool
	}{
		{"children", "", true},
		{"Children", "", true},
		{"fiction", "kids", true},
		{"fiction", "Early Reader", true},
		{"fiction", "6-8", true},
		{"fiction", "8 to 12", true},
		{"fiction", "13-18", false},
		{"fiction", "adult", false},
		{"non_fiction", "", false},
	}
	for _, tt := range tests {
		if got := IsChildAudience(tt.category, tt.ageGroup); got != tt.want {
			t.Errorf("IsChildAudience(%q, %q) = %v, want %v", tt.category, tt.ageGroup, got, tt.want)
		}
	}
}
