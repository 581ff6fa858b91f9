// Package extraction reads the text of source documents page by page.
//
// # Usage
//
// Extract the pages of a PDF file:
//
//	ex := extraction.NewPDFExtractor()
//	pages, err := ex.Extract(ctx, "notes.pdf")
//	if err != nil {
//	    return err
//	}
//	for _, p := range pages {
//	    fmt.Printf("page %d: %d chars\n", p.Number, len(p.Text))
//	}
//
// ExtractDocument returns the same pages wrapped in a chunker.Document keyed
// by the file's base name, ready for splitting.
//
// Pages without any extractable text (scanned images, blank pages) are
// omitted. A file with no text at all yields an empty slice and no error; the
// chunker rejects it later as empty input.
package extraction
