package pdf

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PageTexts extracts positioned text for every page. Page dimensions come
// from pdfcpu; spans come from ledongthuc/pdf, which reports each text
// run's origin and width in PDF user space.
func (e *engine) PageTexts(doc []byte) (pages []PageText, err error) {
	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &ParseError{Op: "page texts", Err: fmt.Errorf("content extraction panic: %v", r)}
		}
	}()

	ctx, err := e.readContext(doc, "page texts")
	if err != nil {
		return nil, err
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, &ParseError{Op: "page texts", Err: err}
	}

	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, &ParseError{Op: "page texts", Err: err}
	}

	pages = make([]PageText, 0, reader.NumPage())
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		pt := PageText{Number: pageNum}
		if pageNum-1 < len(dims) {
			pt.Width = dims[pageNum-1].Width
			pt.Height = dims[pageNum-1].Height
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			pages = append(pages, pt)
			continue
		}

		for _, text := range page.Content().Text {
			// ledongthuc has no glyph height; the font size is close enough.
			height := text.FontSize
			if height == 0 {
				height = 12.0
			}
			pt.Spans = append(pt.Spans, TextSpan{
				Text:     text.S,
				X:        text.X,
				Y:        text.Y,
				W:        text.W,
				H:        height,
				FontSize: text.FontSize,
			})
		}
		pages = append(pages, pt)
	}

	return pages, nil
}
