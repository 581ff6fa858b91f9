package extraction

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF renders one Helvetica text line per page. An empty string yields a
// page with an empty content stream.
func buildPDF(pages []string) []byte {
	var objs []string
	add := func(body string) int {
		objs = append(objs, body)
		return len(objs)
	}

	add("") // catalog, filled in below
	add("") // page tree, filled in below
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	kids := make([]string, 0, len(pages))
	for _, text := range pages {
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		content := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
		page := add(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", font, content))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objs[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func writePDF(t *testing.T, name string, pages []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buildPDF(pages), 0o600))
	return path
}

func TestPDFExtractor_Extract(t *testing.T) {
	path := writePDF(t, "geo.pdf", []string{"Paris is the capital of France.", "", "Berlin is the capital of Germany."})

	pages, err := NewPDFExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 2, "blank page is skipped")

	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Paris is the capital of France.")
	assert.Equal(t, 3, pages[1].Number)
	assert.Contains(t, pages[1].Text, "Berlin is the capital of Germany.")
}

func TestPDFExtractor_ExtractDocument(t *testing.T) {
	path := writePDF(t, "notes.pdf", []string{"Some notes."})

	doc, err := NewPDFExtractor().ExtractDocument(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "notes.pdf", doc.SourceID)
	require.Len(t, doc.Pages, 1)
	assert.Contains(t, doc.Pages[0].Text, "Some notes.")
}

func TestPDFExtractor_NoText(t *testing.T) {
	path := writePDF(t, "blank.pdf", []string{"", ""})

	pages, err := NewPDFExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestPDFExtractor_Errors(t *testing.T) {
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte(strings.Repeat("plain text, not a pdf\n", 10)), 0o600))

	truncated := filepath.Join(dir, "truncated.pdf")
	full := buildPDF([]string{"hello"})
	require.NoError(t, os.WriteFile(truncated, full[:len(full)/2], 0o600))

	tests := map[string]string{
		"missing file": filepath.Join(dir, "missing.pdf"),
		"not a pdf":    notPDF,
		"truncated":    truncated,
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewPDFExtractor().Extract(context.Background(), path)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrExtractFailed)

			var ee *ExtractError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, path, ee.Path)
			assert.Contains(t, err.Error(), filepath.Base(path))
		})
	}
}

func TestPDFExtractor_ContextCanceled(t *testing.T) {
	path := writePDF(t, "geo.pdf", []string{"one", "two"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPDFExtractor().Extract(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
