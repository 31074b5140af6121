package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jackzampolin/lectern/internal/types"
)

var chapterLine = regexp.MustCompile(`(?i)^chapter\s+([0-9]+|[ivxlcdm]+|[a-z]+(?:-[a-z]+)?)\b(.*)$`)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
}

// ParseChapterHeading reports the chapter number of a heading line such as
// "Chapter 12", "CHAPTER XII" or "Chapter Twenty-One: The Storm".
func ParseChapterHeading(line string) (int, bool) {
	m := chapterLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}
	token := strings.ToLower(m[1])
	if n, err := strconv.Atoi(token); err == nil {
		return n, n > 0
	}
	if n, ok := romanValue(token); ok {
		return n, true
	}
	return wordsValue(token)
}

func romanValue(s string) (int, bool) {
	values := map[rune]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}
	total, prev := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := values[rune(s[i])]
		if !ok {
			return 0, false
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	return total, total > 0
}

func wordsValue(s string) (int, bool) {
	total := 0
	for _, w := range strings.Split(s, "-") {
		v, ok := numberWords[w]
		if !ok {
			return 0, false
		}
		total += v
	}
	return total, total > 0
}

// TagChapters marks pages with the most recent chapter heading found at the
// top of a page. Pages before the first heading stay untagged.
func TagChapters(pages []types.Page) {
	var (
		current *int
		heading string
	)
	for i := range pages {
		line := firstLine(pages[i].Text)
		if n, ok := ParseChapterHeading(line); ok {
			num := n
			current = &num
			heading = line
		}
		if current != nil {
			num := *current
			pages[i].ChapterNumber = &num
			pages[i].ChapterHeading = heading
		}
	}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}
