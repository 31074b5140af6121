package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/types"
)

func TestKindOf(t *testing.T) {
	tests := map[string]Kind{
		"pdf":             KindPDF,
		"application/pdf": KindPDF,
		"book.DOCX":       KindDOCX,
		"notes.txt":       KindText,
		"text/plain":      KindText,
		"":                KindPDF,
	}
	for in, want := range tests {
		if got := KindOf(in); got != want {
			t.Errorf("KindOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseChapterHeading(t *testing.T) {
	tests := []struct {
		line string
		want int
		ok   bool
	}{
		{"Chapter 12", 12, true},
		{"CHAPTER XII", 12, true},
		{"Chapter iv: The Road", 4, true},
		{"Chapter Three: The Storm", 3, true},
		{"chapter twenty-one", 21, true},
		{"Chapter the Last", 0, false},
		{"In this chapter we", 0, false},
		{"Chapter 0", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseChapterHeading(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseChapterHeading(%q) = %d, %v, want %d, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTagChapters(t *testing.T) {
	pages := []types.Page{
		{Number: 1, Text: "Title page"},
		{Number: 2, Text: "\n  Chapter 1: Arrival\nThe boat docked."},
		{Number: 3, Text: "More of the arrival."},
		{Number: 4, Text: "CHAPTER II\nNight falls."},
	}
	TagChapters(pages)

	if pages[0].ChapterNumber != nil {
		t.Errorf("page 1 chapter = %v, want nil", *pages[0].ChapterNumber)
	}
	for i, want := range map[int]int{1: 1, 2: 1, 3: 2} {
		if pages[i].ChapterNumber == nil || *pages[i].ChapterNumber != want {
			t.Errorf("page %d chapter = %v, want %d", i+1, pages[i].ChapterNumber, want)
		}
	}
	if pages[2].ChapterHeading != "Chapter 1: Arrival" {
		t.Errorf("page 3 heading = %q", pages[2].ChapterHeading)
	}
}

func TestPages_Text(t *testing.T) {
	pages, err := Pages([]byte("Chapter 1\nIt began.\fIt ended."), KindText)
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("len(pages) = %d, want 2", len(pages))
	}
	if pages[1].Number != 2 || pages[1].Text != "It ended." {
		t.Errorf("page 2 = %+v", pages[1])
	}
	if pages[1].ChapterNumber == nil || *pages[1].ChapterNumber != 1 {
		t.Errorf("page 2 chapter = %v, want 1", pages[1].ChapterNumber)
	}
}

func TestPages_Invalid(t *testing.T) {
	if _, err := Pages(nil, KindPDF); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Pages(empty) error = %v, want validation", err)
	}
	if _, err := Pages([]byte("not a pdf"), KindPDF); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Pages(garbage) error = %v, want validation", err)
	}
	if _, err := Pages([]byte(" \f \n"), KindText); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Pages(blank) error = %v, want validation", err)
	}
}

func TestPages_DOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/document.xml")
	w.Write([]byte(`<?xml version="1.0"?><w:document><w:body>` +
		`<w:p><w:r><w:t>Chapter 1</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Tom &amp; Jerry met.</w:t></w:r></w:p>` +
		`</w:body></w:document>`))
	rels, _ := zw.Create("word/_rels/document.xml.rels")
	rels.Write([]byte(`<?xml version="1.0"?><Relationships></Relationships>`))
	zw.Close()

	pages, err := Pages(buf.Bytes(), KindDOCX)
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("len(pages) = %d, want 1", len(pages))
	}
	if pages[0].Text != "Chapter 1\nTom & Jerry met." {
		t.Errorf("Text = %q", pages[0].Text)
	}
	if pages[0].ChapterNumber == nil || *pages[0].ChapterNumber != 1 {
		t.Errorf("chapter = %v, want 1", pages[0].ChapterNumber)
	}
}
