package chunker

import (
	"strings"
	"testing"

	"github.com/jackzampolin/lectern/internal/types"
)

func pageOfTokens(n, tokens int) types.Page {
	return types.Page{Number: n, Text: strings.Repeat("abcd", tokens)}
}

func intPtr(v int) *int { return &v }

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 1},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 4000), 1000},
		{"héllo wörld", 3},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestSplit_LargePages(t *testing.T) {
	pages := []types.Page{
		pageOfTokens(1, 1000),
		pageOfTokens(2, 1000),
		pageOfTokens(3, 200),
	}

	chunks := Split(pages, Config{})
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].StartPage != 1 || chunks[0].EndPage != 2 {
		t.Errorf("chunk 0 pages = %d-%d, want 1-2", chunks[0].StartPage, chunks[0].EndPage)
	}
	if chunks[1].StartPage != 2 || chunks[1].EndPage != 3 {
		t.Errorf("chunk 1 pages = %d-%d, want 2-3", chunks[1].StartPage, chunks[1].EndPage)
	}

	tail := chunks[0].Content[len(chunks[0].Content)-DefaultOverlapTokens*charsPerToken:]
	if !strings.HasPrefix(chunks[1].Content, tail) {
		t.Error("chunk 1 does not start with the tail of chunk 0")
	}
	if !strings.HasSuffix(chunks[1].Content, pages[2].Text) {
		t.Error("chunk 1 does not end with page 3")
	}
}

func TestSplit_Invariants(t *testing.T) {
	var pages []types.Page
	for i := 1; i <= 40; i++ {
		pages = append(pages, pageOfTokens(i, 150+i*7))
	}

	chunks := Split(pages, Config{MaxTokens: 800, OverlapTokens: 50})
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want several", len(chunks))
	}

	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		if c.StartPage > c.EndPage {
			t.Errorf("chunk %d pages %d-%d", i, c.StartPage, c.EndPage)
		}
		if c.TokenCount != EstimateTokens(c.Content) {
			t.Errorf("chunk %d TokenCount = %d, want %d", i, c.TokenCount, EstimateTokens(c.Content))
		}
		if i > 0 {
			prev := chunks[i-1].Content
			tail := prev[len(prev)-200:]
			if !strings.HasPrefix(c.Content, tail) {
				t.Errorf("chunk %d does not start with tail of chunk %d", i, i-1)
			}
			if c.StartPage != chunks[i-1].EndPage {
				t.Errorf("chunk %d starts at page %d, want %d", i, c.StartPage, chunks[i-1].EndPage)
			}
		}
	}
	if last := chunks[len(chunks)-1]; last.EndPage != 40 {
		t.Errorf("last chunk ends at page %d, want 40", last.EndPage)
	}
}

func TestSplit_SmallBook(t *testing.T) {
	chunks := Split([]types.Page{
		{Number: 1, Text: "Once upon a time."},
		{Number: 2, Text: "   "},
		{Number: 3, Text: "The end."},
	}, Config{})

	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0].Content != "Once upon a time.\nThe end." {
		t.Errorf("Content = %q", chunks[0].Content)
	}
	if chunks[0].StartPage != 1 || chunks[0].EndPage != 3 {
		t.Errorf("pages = %d-%d, want 1-3", chunks[0].StartPage, chunks[0].EndPage)
	}
}

func TestSplit_NoTrailingOverlapChunk(t *testing.T) {
	chunks := Split([]types.Page{
		pageOfTokens(1, 500),
		pageOfTokens(2, 500),
	}, Config{})

	if len(chunks) != 1 {
		t.Errorf("len(chunks) = %d, want 1", len(chunks))
	}
}

func TestSplit_Empty(t *testing.T) {
	if chunks := Split(nil, Config{}); len(chunks) != 0 {
		t.Errorf("len(chunks) = %d, want 0", len(chunks))
	}
}

func TestSplit_ChapterTagging(t *testing.T) {
	pages := []types.Page{
		{Number: 1, Text: strings.Repeat("a", 2000), ChapterNumber: intPtr(1), ChapterHeading: "Chapter 1"},
		{Number: 2, Text: strings.Repeat("b", 2000), ChapterNumber: intPtr(1), ChapterHeading: "Chapter 1"},
		{Number: 3, Text: strings.Repeat("c", 400), ChapterNumber: intPtr(2), ChapterHeading: "Chapter 2"},
	}

	chunks := Split(pages, Config{})
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].ChapterNumber == nil || *chunks[0].ChapterNumber != 1 {
		t.Errorf("chunk 0 chapter = %v, want 1", chunks[0].ChapterNumber)
	}
	if chunks[1].ChapterNumber == nil || *chunks[1].ChapterNumber != 2 {
		t.Errorf("chunk 1 chapter = %v, want 2", chunks[1].ChapterNumber)
	}
	if chunks[1].ChapterHeading != "Chapter 2" {
		t.Errorf("chunk 1 heading = %q", chunks[1].ChapterHeading)
	}
}
