package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bookseek/internal/rag"
)

// defaultSettle is how long a PDF must stop changing before it is ingested.
const defaultSettle = 2 * time.Second

// ingestFunc ingests one file.
type ingestFunc func(ctx context.Context, path string) error

// pdfWatcher collects PDF files created or rewritten in a directory and hands
// each to an ingestFunc once writes have settled.
type pdfWatcher struct {
	watcher *fsnotify.Watcher
	ingest  ingestFunc
	settle  time.Duration
	logger  *zap.Logger
}

func newPDFWatcher(dir string, ingest ingestFunc, logger *zap.Logger) (*pdfWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &pdfWatcher{watcher: w, ingest: ingest, settle: defaultSettle, logger: logger}, nil
}

// Run blocks until ctx is done. Settled files are ingested one at a time in
// name order, so a file that fails does not hold back the others. A failed
// file is logged and retried when it changes again.
func (w *pdfWatcher) Run(ctx context.Context) error {
	defer func() {
		_ = w.watcher.Close() // Best-effort cleanup, ignore error
	}()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !isPDF(event.Name) || !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.settle)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)

			for _, p := range paths {
				if ctx.Err() != nil {
					return nil
				}
				if err := w.ingest(ctx, p); err != nil {
					w.logger.Warn("ingest of watched file failed", zap.String("path", p), zap.Error(err))
				}
			}
		}
	}
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// watchDir ingests PDFs appearing in dir into sess until ctx is done.
func watchDir(ctx context.Context, a *app, sess *rag.Session, dir string) error {
	zl := a.logger.Underlying()
	w, err := newPDFWatcher(dir, func(ctx context.Context, path string) error {
		report, err := a.svc.IngestFiles(ctx, sess, []string{path})
		if err != nil {
			return err
		}
		zl.Info("ingested watched file",
			zap.String("path", path),
			zap.Int("processed", report.Processed),
			zap.Int("skipped", report.Skipped),
			zap.Int("chunks", report.ChunksAdded))
		return nil
	}, zl)
	if err != nil {
		return err
	}
	zl.Info("watching for PDF files", zap.String("dir", dir))
	return w.Run(ctx)
}
