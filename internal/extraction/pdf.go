package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/bookseek/internal/chunker"
	"github.com/ledongthuc/pdf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fyrsmithlabs/bookseek/internal/extraction"

// ErrExtractFailed is the sentinel wrapped by ExtractError.
var ErrExtractFailed = errors.New("text extraction failed")

// ExtractError reports a document that could not be read.
type ExtractError struct {
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extracting text from %s: %v", e.Path, e.Err)
}

func (e *ExtractError) Unwrap() []error { return []error{ErrExtractFailed, e.Err} }

// Page is the text of one page with its 1-based number.
type Page = chunker.Page

// Extractor returns the text of a document page by page.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Page, error)
}

// PDFExtractor extracts plain text from PDF files.
type PDFExtractor struct{}

// NewPDFExtractor returns a PDF extractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// Extract reads every page of the PDF at path.
func (x *PDFExtractor) Extract(ctx context.Context, path string) ([]Page, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "extraction.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, x.fail(span, &ExtractError{Path: path, Err: err})
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, x.fail(span, &ExtractError{Path: path, Err: err})
	}

	pages, err := x.ExtractReader(ctx, f, info.Size(), path)
	if err != nil {
		return nil, x.fail(span, err)
	}
	span.SetAttributes(attribute.Int("pages", len(pages)))
	return pages, nil
}

// ExtractReader reads a PDF of the given size from r. name identifies the
// document in errors.
func (x *PDFExtractor) ExtractReader(ctx context.Context, r io.ReaderAt, size int64, name string) (pages []Page, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = &ExtractError{Path: name, Err: fmt.Errorf("malformed pdf: %v", rec)}
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, &ExtractError{Path: name, Err: err}
	}

	total := reader.NumPage()
	pages = make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, &ExtractError{Path: name, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// ExtractDocument extracts path into a document whose source is the file's
// base name.
func (x *PDFExtractor) ExtractDocument(ctx context.Context, path string) (chunker.Document, error) {
	pages, err := x.Extract(ctx, path)
	if err != nil {
		return chunker.Document{}, err
	}
	return chunker.Document{SourceID: filepath.Base(path), Pages: pages}, nil
}

func (x *PDFExtractor) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "extraction failed")
	return err
}

var _ Extractor = (*PDFExtractor)(nil)
