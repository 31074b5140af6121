package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/providers"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/store/memory"
)

type fakeSearcher struct {
	rows []store.SearchRow
	got  store.SearchParams
	err  error
}

func (f *fakeSearcher) Search(ctx context.Context, p store.SearchParams) ([]store.SearchRow, error) {
	f.got = p
	return f.rows, f.err
}

func strPtr(s string) *string { return &s }

func TestClampK(t *testing.T) {
	tests := map[int]int{-3: 5, 0: 5, 1: 1, 7: 7, 20: 20, 21: 20, 500: 20}
	for in, want := range tests {
		if got := ClampK(in); got != want {
			t.Errorf("ClampK(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		row         store.SearchRow
		wantChapter *int
		wantPage    *int
		wantHeading *string
	}{
		{
			name: "top level wins",
			row: store.SearchRow{
				ChapterNumber:  store.IntOf(3),
				PageNumber:     store.IntOf(40),
				ChapterHeading: strPtr("  The Storm "),
				Metadata: store.RowMetadata{
					ChapterNumber:  store.IntOf(9),
					PageNumber:     store.IntOf(99),
					ChapterHeading: strPtr("Other"),
				},
			},
			wantChapter: intPtr(3),
			wantPage:    intPtr(40),
			wantHeading: strPtr("The Storm"),
		},
		{
			name: "falls back to metadata",
			row: store.SearchRow{
				ChapterHeading: strPtr("   "),
				Metadata: store.RowMetadata{
					ChapterNumber:  store.IntOf(2),
					PageNumber:     store.IntOf(12),
					ChapterHeading: strPtr("Arrival"),
				},
			},
			wantChapter: intPtr(2),
			wantPage:    intPtr(12),
			wantHeading: strPtr("Arrival"),
		},
		{
			name: "nothing resolves",
			row:  store.SearchRow{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Resolve(tt.row)
			if !eqInt(m.Chapter, tt.wantChapter) {
				t.Errorf("Chapter = %v, want %v", deref(m.Chapter), deref(tt.wantChapter))
			}
			if !eqInt(m.Page, tt.wantPage) {
				t.Errorf("Page = %v, want %v", deref(m.Page), deref(tt.wantPage))
			}
			if (m.Heading == nil) != (tt.wantHeading == nil) || (m.Heading != nil && *m.Heading != *tt.wantHeading) {
				t.Errorf("Heading = %v, want %v", m.Heading, tt.wantHeading)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestEngineSearch(t *testing.T) {
	t.Run("clamps k and passes book filter", func(t *testing.T) {
		f := &fakeSearcher{}
		e := New(f, Config{})
		if _, err := e.Search(context.Background(), []float32{1}, 100, "book-1"); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if f.got.MatchCount != MaxK || f.got.BookID != "book-1" {
			t.Errorf("params = %+v", f.got)
		}

		e.Search(context.Background(), []float32{1}, 0, "book-1")
		if f.got.MatchCount != DefaultK {
			t.Errorf("MatchCount = %d, want default %d", f.got.MatchCount, DefaultK)
		}
	})

	t.Run("validation", func(t *testing.T) {
		e := New(&fakeSearcher{}, Config{})
		if _, err := e.Search(context.Background(), []float32{1}, 5, ""); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("error = %v, want validation", err)
		}
		if _, err := e.Search(context.Background(), nil, 5, "b"); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("error = %v, want validation", err)
		}
	})

	t.Run("searcher failure", func(t *testing.T) {
		e := New(&fakeSearcher{err: errors.New("down")}, Config{})
		if _, err := e.Search(context.Background(), []float32{1}, 5, "b"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("memory index end to end", func(t *testing.T) {
		ctx := context.Background()
		st, err := memory.New("")
		if err != nil {
			t.Fatalf("memory.New() error = %v", err)
		}
		book := &store.Book{Title: "T"}
		st.CreateBook(ctx, book)

		ch := 4
		chunks := []store.Chunk{
			{ChunkIndex: 0, Content: "the dragon sleeps on gold", StartPage: 10, EndPage: 11, ChapterNumber: &ch,
				Metadata: store.ChunkMetadata{ChapterHeading: "Chapter 4: Smaug"}},
			{ChunkIndex: 1, Content: "a hobbit eats breakfast", StartPage: 1, EndPage: 1},
			{ChunkIndex: 2, Content: "wizards and fireworks", StartPage: 3, EndPage: 4},
		}
		ids, err := st.ReplaceChunks(ctx, book.ID, chunks)
		if err != nil {
			t.Fatalf("ReplaceChunks() error = %v", err)
		}
		var embs []store.ChunkEmbedding
		for _, c := range chunks {
			embs = append(embs, store.ChunkEmbedding{ChunkID: ids[c.ChunkIndex], Vector: providers.HashVector(c.Content, 16)})
		}
		if err := st.SetEmbeddings(ctx, book.ID, embs); err != nil {
			t.Fatalf("SetEmbeddings() error = %v", err)
		}

		e := New(st, Config{})
		matches, err := e.Search(ctx, providers.HashVector("the dragon sleeps on gold", 16), 10, book.ID)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(matches) != 3 {
			t.Fatalf("len = %d, want 3 (bounded by collection size)", len(matches))
		}
		top := matches[0]
		if top.ChunkID != ids[0] {
			t.Errorf("top match = %s, want %s", top.ChunkID, ids[0])
		}
		if top.Chapter == nil || *top.Chapter != 4 || top.Page == nil || *top.Page != 10 {
			t.Errorf("top location = %v / %v", deref(top.Chapter), deref(top.Page))
		}
		if top.Heading == nil || *top.Heading != "Chapter 4: Smaug" {
			t.Errorf("top heading = %v", top.Heading)
		}
		for i := 1; i < len(matches); i++ {
			if matches[i].Similarity > matches[i-1].Similarity {
				t.Error("matches not ordered by similarity")
			}
		}
	})
}
