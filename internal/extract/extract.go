// Package extract turns a book's source document into ordered page text.
package extract

import (
	"bytes"
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/types"
)

// Kind is a supported document format.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindDOCX Kind = "docx"
	KindText Kind = "txt"
)

// KindOf infers the format from a file type or file name, defaulting to PDF.
func KindOf(fileType string) Kind {
	ft := strings.ToLower(strings.TrimSpace(fileType))
	if ext := path.Ext(ft); ext != "" && !strings.Contains(ft, "/") {
		ft = ext[1:]
	}
	switch ft {
	case "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return KindDOCX
	case "txt", "text", "text/plain":
		return KindText
	}
	return KindPDF
}

// Pages extracts page text from data and tags each page with the chapter it
// belongs to.
func Pages(data []byte, kind Kind) ([]types.Page, error) {
	if len(data) == 0 {
		return nil, errs.Validation("extract", "document is empty")
	}

	var (
		pages []types.Page
		err   error
	)
	switch kind {
	case KindDOCX:
		pages, err = docxPages(data)
	case KindText:
		pages = textPages(string(data))
	default:
		pages, err = pdfPages(data)
	}
	if err != nil {
		return nil, err
	}

	hasText := false
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			hasText = true
			break
		}
	}
	if !hasText {
		return nil, errs.Validation("extract", "document contains no extractable text")
	}

	TagChapters(pages)
	return pages, nil
}

func pdfPages(data []byte) (pages []types.Page, err error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, errs.E(errs.KindValidation, "extract.pdf", "unreadable pdf", err)
	}

	// The text reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = errs.Validation("extract.pdf", "failed to read pdf text: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.E(errs.KindValidation, "extract.pdf", "unreadable pdf", err)
	}
	if n := reader.NumPage(); n < count {
		count = n
	}

	pages = make([]types.Page, 0, count)
	for i := 1; i <= count; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, types.Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read text of page %d: %w", i, err)
		}
		pages = append(pages, types.Page{Number: i, Text: text})
	}
	return pages, nil
}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>|<w:br[^>]*/>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
)

func docxPages(data []byte) ([]types.Page, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.E(errs.KindValidation, "extract.docx", "unreadable docx", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = paragraphEnd.ReplaceAllString(content, "\n")
	content = xmlTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	return []types.Page{{Number: 1, Text: strings.TrimSpace(content)}}, nil
}

// textPages splits plain text on form feeds.
func textPages(s string) []types.Page {
	parts := strings.Split(s, "\f")
	pages := make([]types.Page, len(parts))
	for i, p := range parts {
		pages[i] = types.Page{Number: i + 1, Text: p}
	}
	return pages
}
