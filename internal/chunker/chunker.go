// Package chunker splits a book's pages into overlapping chunks sized for
// embedding.
package chunker

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/lectern/internal/types"
)

const (
	DefaultMaxTokens     = 800
	DefaultOverlapTokens = 50

	// charsPerToken is the heuristic used by EstimateTokens.
	charsPerToken = 4
)

// Chunk is a contiguous run of page text.
type Chunk struct {
	Index          int
	Content        string
	TokenCount     int
	StartPage      int
	EndPage        int
	ChapterNumber  *int
	ChapterHeading string
}

// Config sets chunk sizing. Zero values take the defaults.
type Config struct {
	MaxTokens     int
	OverlapTokens int
}

// EstimateTokens approximates the token count of text as one token per four
// characters, never less than one.
func EstimateTokens(text string) int {
	n := int(math.Ceil(float64(utf8.RuneCountInString(text)) / charsPerToken))
	if n < 1 {
		return 1
	}
	return n
}

// buffer accumulates page text for the chunk being built.
type buffer struct {
	text      strings.Builder
	startPage int
	endPage   int
	chapter   *int
	heading   string
	pages     int  // distinct pages contributing text
	fresh     bool // holds text beyond the seeded overlap
}

func (b *buffer) empty() bool { return b.text.Len() == 0 }

func (b *buffer) add(p types.Page, text string) {
	if b.empty() {
		b.startPage = p.Number
		b.chapter = p.ChapterNumber
		b.heading = p.ChapterHeading
	} else {
		b.text.WriteByte('\n')
	}
	b.text.WriteString(text)
	b.endPage = p.Number
	b.pages++
	b.fresh = true
}

// Split walks pages in order and emits chunks. A chunk closes once its token
// estimate reaches MaxTokens and it spans at least two pages; the next chunk
// starts with the trailing OverlapTokens worth of characters of the one
// before it.
func Split(pages []types.Page, cfg Config) []Chunk {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	} else if cfg.OverlapTokens == 0 {
		cfg.OverlapTokens = DefaultOverlapTokens
	}
	overlapChars := cfg.OverlapTokens * charsPerToken

	var chunks []Chunk
	buf := &buffer{}

	flush := func() {
		content := buf.text.String()
		chunks = append(chunks, Chunk{
			Index:          len(chunks),
			Content:        content,
			TokenCount:     EstimateTokens(content),
			StartPage:      buf.startPage,
			EndPage:        buf.endPage,
			ChapterNumber:  buf.chapter,
			ChapterHeading: buf.heading,
		})

		next := &buffer{}
		if tail := tailRunes(content, overlapChars); tail != "" {
			next.text.WriteString(tail)
			next.startPage = buf.endPage
			next.endPage = buf.endPage
			next.chapter = buf.chapter
			next.heading = buf.heading
			next.pages = 1
		}
		buf = next
	}

	for _, p := range pages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		// A buffer holding only overlap takes the chapter of the page that follows.
		if !buf.fresh && !buf.empty() {
			buf.chapter = p.ChapterNumber
			buf.heading = p.ChapterHeading
		}
		buf.add(p, text)
		if buf.pages >= 2 && EstimateTokens(buf.text.String()) >= cfg.MaxTokens {
			flush()
		}
	}
	if buf.fresh {
		flush()
	}
	return chunks
}

// tailRunes returns the last n characters of s.
func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}
