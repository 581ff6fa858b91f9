package http_test

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/bookseek/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/bookseek/internal/http"
	"github.com/fyrsmithlabs/bookseek/internal/rag"
	"github.com/fyrsmithlabs/bookseek/internal/vectorstore"
	"go.uber.org/zap"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, prompt string) (string, error) { return prompt, nil }

// ExampleServer demonstrates how to create and start the HTTP server.
func ExampleServer() {
	logger := zap.NewNop()

	idx, err := vectorstore.New(vectorstore.Config{}, logger)
	if err != nil {
		panic(err)
	}
	svc, err := rag.NewService(rag.Deps{
		Embedder:  embeddings.NewHashEmbedder(embeddings.DefaultHashDimension),
		Index:     idx,
		Generator: echoGenerator{},
	}, rag.DefaultConfig())
	if err != nil {
		panic(err)
	}

	server, err := httpserver.NewServer(svc, logger, &httpserver.Config{Host: "localhost", Port: 0})
	if err != nil {
		panic(err)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
