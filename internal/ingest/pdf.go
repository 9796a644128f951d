package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the extracted plain text of a single source page.
type Page struct {
	Number int
	Text   string
}

// Load extracts per-page plain text from the PDF at path. Pages with no
// extractable text are skipped. Malformed files surface as an error, never a
// crash: the pdf package panics on some corrupt inputs, so extraction runs
// behind a recover.
func Load(path string) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("reading %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d of %s: %w", i, path, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}
	return pages, nil
}
