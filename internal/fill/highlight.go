package fill

import "github.com/docfill/docfill/internal/pdf"

// Highlight draws a highlight annotation over every occurrence of every
// phrase (case-insensitive) and returns the updated document plus the
// number of matches. A document with no matches is returned unchanged.
func (f *Filler) Highlight(doc []byte, phrases []string) ([]byte, int, error) {
	pages, err := f.engine.PageTexts(doc)
	if err != nil {
		return nil, 0, err
	}
	lines := buildLines(pages)

	var regions []pdf.Region
	for _, phrase := range phrases {
		for _, a := range findAll(lines, phrase) {
			regions = append(regions, pdf.Region{
				Page: a.Page,
				X0:   a.X0,
				Y0:   a.Y0,
				X1:   a.X1,
				Y1:   a.Y1,
			})
		}
	}

	if len(regions) == 0 {
		return doc, 0, nil
	}

	marked, err := f.engine.Highlight(doc, regions)
	if err != nil {
		return nil, 0, err
	}
	return marked, len(regions), nil
}
