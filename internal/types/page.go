// Package types provides shared types used across multiple packages.
// This package has no dependencies on other lectern packages to avoid import cycles.
package types

// Page is the extracted text of one page of a book.
type Page struct {
	Number int
	Text   string

	// ChapterNumber and ChapterHeading describe the chapter the page belongs
	// to, when one was detected.
	ChapterNumber  *int
	ChapterHeading string
}
