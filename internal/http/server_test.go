package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/bookseek/internal/chunker"
	"github.com/fyrsmithlabs/bookseek/internal/embeddings"
	"github.com/fyrsmithlabs/bookseek/internal/generation"
	"github.com/fyrsmithlabs/bookseek/internal/rag"
	"github.com/fyrsmithlabs/bookseek/internal/vectorstore"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGenerator struct {
	err error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "From your notes: " + prompt, nil
}

// setupTestServer creates a server over an in-memory index.
func setupTestServer(t *testing.T, gen *stubGenerator) *Server {
	t.Helper()

	idx, err := vectorstore.New(vectorstore.Config{}, zap.NewNop())
	require.NoError(t, err)
	if gen == nil {
		gen = &stubGenerator{}
	}
	svc, err := rag.NewService(rag.Deps{
		Embedder:  embeddings.NewHashEmbedder(1024),
		Index:     idx,
		Generator: gen,
	}, rag.DefaultConfig())
	require.NoError(t, err)

	server, err := NewServer(svc, zap.NewNop(), &Config{Host: "localhost", Port: 0})
	require.NoError(t, err)
	return server
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func askRequest(question string) *http.Request {
	body, _ := json.Marshal(AskRequest{Question: question})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func uploadRequest(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile(uploadField, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

// onePagePDF renders text on a single Helvetica page.
func onePagePDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

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

func ingest(t *testing.T, s *Server) {
	t.Helper()
	_, err := s.svc.Ingest(context.Background(), s.Session(), []chunker.Document{
		chunker.NewDocument("france.pdf", "Paris is the capital of France."),
		chunker.NewDocument("germany.pdf", "Berlin is the capital of Germany."),
	})
	require.NoError(t, err)
}

func TestNewServer(t *testing.T) {
	t.Run("returns error when service is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		assert.Error(t, err)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		s := setupTestServer(t, nil)
		_, err := NewServer(s.svc, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s := setupTestServer(t, nil)
		server, err := NewServer(s.svc, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", server.config.Host)
		assert.Equal(t, 8501, server.config.Port)
		assert.Equal(t, "64M", server.config.BodyLimit)
	})
}

func TestHandleHealth(t *testing.T) {
	rec := serve(setupTestServer(t, nil), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleAsk(t *testing.T) {
	t.Run("answers from ingested documents", func(t *testing.T) {
		s := setupTestServer(t, nil)
		ingest(t, s)

		rec := serve(s, askRequest("What is the capital of France?"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var ans rag.Answer
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ans))
		assert.Contains(t, ans.Text, "Paris")
		require.NotEmpty(t, ans.Sources)
		assert.Equal(t, "france.pdf", ans.Sources[0].Name)
	})

	t.Run("conflict before any document", func(t *testing.T) {
		rec := serve(setupTestServer(t, nil), askRequest("What is the capital of France?"))
		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, "no documents loaded")
	})

	t.Run("bad request for empty question", func(t *testing.T) {
		s := setupTestServer(t, nil)
		ingest(t, s)
		assert.Equal(t, http.StatusBadRequest, serve(s, askRequest("  ")).Code)
	})

	t.Run("bad gateway with hint on auth failure", func(t *testing.T) {
		s := setupTestServer(t, &stubGenerator{err: &generation.GenerationFailedError{StatusCode: 401}})
		ingest(t, s)

		rec := serve(s, askRequest("What is the capital of France?"))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "check your API key")
		assert.Empty(t, s.Session().Current().Turns)
	})

	t.Run("gateway timeout", func(t *testing.T) {
		gf := &generation.GenerationFailedError{Err: fmt.Errorf("request failed: %w", context.DeadlineExceeded)}
		s := setupTestServer(t, &stubGenerator{err: gf})
		ingest(t, s)
		assert.Equal(t, http.StatusGatewayTimeout, serve(s, askRequest("capital?")).Code)
	})
}

func TestHandleUpload(t *testing.T) {
	t.Run("ingests uploaded pdf", func(t *testing.T) {
		s := setupTestServer(t, nil)
		rec := serve(s, uploadRequest(t, map[string][]byte{
			"france.pdf": onePagePDF("Paris is the capital of France."),
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var report rag.IngestReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, 1, report.Processed)
		assert.Equal(t, []string{"france.pdf"}, report.Sources)
		assert.Equal(t, rag.StateReady, s.Session().State())

		// Uploading the same file again is a no-op.
		rec = serve(s, uploadRequest(t, map[string][]byte{
			"france.pdf": onePagePDF("Paris is the capital of France."),
		}))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, 1, report.Skipped)
	})

	t.Run("unprocessable when a file is not a pdf", func(t *testing.T) {
		s := setupTestServer(t, nil)
		rec := serve(s, uploadRequest(t, map[string][]byte{
			"notes.pdf": []byte(strings.Repeat("plain text\n", 20)),
		}))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "notes.pdf")
		assert.Zero(t, s.svc.Index().Len())
	})

	t.Run("windows client paths are reduced to the file name", func(t *testing.T) {
		s := setupTestServer(t, nil)
		rec := serve(s, uploadRequest(t, map[string][]byte{
			`C:\Users\me\paris.pdf`: onePagePDF("Paris is the capital of France."),
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"paris.pdf"}, s.svc.Sources())
	})

	t.Run("bad request without files", func(t *testing.T) {
		s := setupTestServer(t, nil)
		assert.Equal(t, http.StatusBadRequest, serve(s, uploadRequest(t, nil)).Code)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("{}"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		assert.Equal(t, http.StatusBadRequest, serve(s, req).Code)
	})
}

func TestHandleSourcesAndStatus(t *testing.T) {
	s := setupTestServer(t, nil)
	ingest(t, s)
	serve(s, askRequest("What is the capital of France?"))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/sources", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sources SourcesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
	assert.Equal(t, []string{"france.pdf", "germany.pdf"}, sources.Sources)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "READY", status.State)
	assert.Equal(t, 4, status.Entries)
	assert.Equal(t, 1024, status.Dimension)
}

func TestConversations(t *testing.T) {
	s := setupTestServer(t, nil)
	ingest(t, s)
	serve(s, askRequest("What is the capital of France?"))

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/api/v1/conversations", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list ConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Conversations, 2)
	assert.Equal(t, "What is the capital of France?", list.Conversations[0].Name)
	assert.Equal(t, created.ID, list.Current)

	first := list.Conversations[0].ID
	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+first+"/select", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, s.Session().Current().ID)

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/v1/conversations/missing/select", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t, nil)
	ingest(t, s)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bookseek_vectorstore_entries")
	assert.Contains(t, rec.Body.String(), "bookseek_rag_documents_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&rag.NotReadyError{}, http.StatusConflict},
		{&rag.IngestFailedError{Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{&generation.GenerationFailedError{StatusCode: 500}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestServerLifecycle(t *testing.T) {
	server := setupTestServer(t, nil)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errChan:
		assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed))
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		rec := serve(setupTestServer(t, nil), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server := setupTestServer(t, nil)
		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		var rec *httptest.ResponseRecorder
		assert.NotPanics(t, func() {
			rec = serve(server, httptest.NewRequest(http.MethodGet, "/panic", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
