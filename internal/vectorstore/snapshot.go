package vectorstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// On-disk layout of a persisted index directory:
//
//	manifest.json           commit record naming the live snapshot
//	snapshot-<uuid>.gob     gob-encoded entries (.gob.gz when compressed)
//
// A snapshot becomes live only when manifest.json is atomically replaced to
// point at it, so a crash at any point leaves the previous snapshot loadable.
const (
	manifestFile    = "manifest.json"
	snapshotPrefix  = "snapshot-"
	snapshotVersion = 1

	// maxSnapshotSize bounds how much Load will read into memory.
	maxSnapshotSize = 2 << 30
)

type manifest struct {
	Version    int       `json:"version"`
	Name       string    `json:"name"`
	Snapshot   string    `json:"snapshot"`
	Checksum   string    `json:"sha256"`
	Entries    int       `json:"entries"`
	Dimension  int       `json:"dimension"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

type snapshot struct {
	Version   int
	Dimension int
	Entries   []storedEntry
}

type storedEntry struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// Exists reports whether dir holds a persisted snapshot.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, manifestFile))
	return err == nil && info.Mode().IsRegular()
}

// Persist writes the full index to dir. The write is atomic: a crash leaves
// either the new snapshot or the previous one, never a partial state.
func (x *Index) Persist(ctx context.Context, dir string) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "vectorstore.Persist")
	defer span.End()
	span.SetAttributes(attribute.String("index", x.cfg.Name), attribute.String("path", dir))

	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist failed")
		}
		persistDuration.WithLabelValues(x.cfg.Name, result).Observe(time.Since(start).Seconds())
	}()

	x.persistMu.Lock()
	defer x.persistMu.Unlock()

	x.mu.RLock()
	snap := snapshot{Version: snapshotVersion, Dimension: x.dim, Entries: make([]storedEntry, len(x.entries))}
	for i, e := range x.entries {
		snap.Entries[i] = storedEntry(e)
	}
	x.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory %s: %w", dir, err)
	}

	name := snapshotPrefix + uuid.NewString() + ".gob"
	if x.cfg.Compress {
		name += ".gz"
	}
	checksum, err := writeSnapshot(filepath.Join(dir, name), snap, x.cfg.Compress)
	if err != nil {
		return err
	}

	m := manifest{
		Version:    snapshotVersion,
		Name:       x.cfg.Name,
		Snapshot:   name,
		Checksum:   checksum,
		Entries:    len(snap.Entries),
		Dimension:  snap.Dimension,
		Compressed: x.cfg.Compress,
		CreatedAt:  time.Now().UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		_ = os.Remove(filepath.Join(dir, name))
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, manifestFile), data); err != nil {
		_ = os.Remove(filepath.Join(dir, name))
		return err
	}
	syncDir(dir)

	x.removeStaleSnapshots(dir, name)
	x.logger.Info("persisted vector index",
		zap.String("path", dir),
		zap.Int("entries", m.Entries),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// writeSnapshot encodes snap to path via a temp file and returns the hex
// sha256 of the bytes on disk.
func writeSnapshot(path string, snap snapshot, compress bool) (string, error) {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating snapshot file: %w", err)
	}
	fail := func(err error) (string, error) {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}

	h := sha256.New()
	var w io.Writer = io.MultiWriter(f, h)
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(w)
		w = gz
	}
	if err := gob.NewEncoder(w).Encode(snap); err != nil {
		return fail(fmt.Errorf("encoding snapshot: %w", err))
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fail(fmt.Errorf("compressing snapshot: %w", err))
		}
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("syncing snapshot: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("finalizing snapshot: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeFileAtomic replaces path with data using write, fsync and rename.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp." + uuid.NewString()[:8]
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// syncDir flushes directory metadata so renames survive a crash. Not every
// platform supports it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func (x *Index) removeStaleSnapshots(dir, live string) {
	matches, err := filepath.Glob(filepath.Join(dir, snapshotPrefix+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if filepath.Base(m) == live {
			continue
		}
		if err := os.Remove(m); err != nil {
			x.logger.Warn("failed to remove stale snapshot", zap.String("file", m), zap.Error(err))
		}
	}
}

// Load reconstructs an index from a prior Persist into dir.
//
// It returns a *NotFoundError when dir has no snapshot and a
// *CorruptIndexError when the snapshot cannot be read. A persisted empty
// index loads successfully.
func Load(ctx context.Context, dir string, cfg Config, logger *zap.Logger) (idx *Index, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "vectorstore.Load")
	defer span.End()
	span.SetAttributes(attribute.String("path", dir))

	defer func() {
		result := "ok"
		switch {
		case errors.Is(err, ErrNotFound):
			result = "not_found"
		case errors.Is(err, ErrCorruptIndex):
			result = "corrupt"
		case errors.Is(err, ErrDimensionMismatch):
			result = "dimension_mismatch"
		case err != nil:
			result = "error"
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		loadsTotal.WithLabelValues(result).Inc()
	}()

	manifestPath := filepath.Join(dir, manifestFile)
	raw, err := os.ReadFile(manifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Path: dir}
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &CorruptIndexError{Path: dir, Reason: "unreadable manifest", Err: err}
	}
	if m.Version != snapshotVersion {
		return nil, &CorruptIndexError{Path: dir, Reason: fmt.Sprintf("unsupported snapshot version %d", m.Version)}
	}
	if m.Snapshot == "" || filepath.Base(m.Snapshot) != m.Snapshot || !strings.HasPrefix(m.Snapshot, snapshotPrefix) {
		return nil, &CorruptIndexError{Path: dir, Reason: fmt.Sprintf("invalid snapshot name %q", m.Snapshot)}
	}

	snap, err := readSnapshot(filepath.Join(dir, m.Snapshot), m)
	if err != nil {
		return nil, &CorruptIndexError{Path: dir, Reason: "unreadable snapshot", Err: err}
	}
	if len(snap.Entries) != m.Entries {
		return nil, &CorruptIndexError{Path: dir, Reason: fmt.Sprintf("manifest lists %d entries, snapshot has %d", m.Entries, len(snap.Entries))}
	}

	if cfg.Name == "" {
		cfg.Name = m.Name
	}
	if cfg.Dimension != 0 && snap.Dimension != 0 && cfg.Dimension != snap.Dimension {
		return nil, &DimensionMismatchError{Path: dir, Want: snap.Dimension, Got: cfg.Dimension}
	}
	if snap.Dimension != 0 {
		cfg.Dimension = snap.Dimension
	}

	idx, err = New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if len(snap.Entries) > 0 {
		entries := make([]Entry, len(snap.Entries))
		for i, e := range snap.Entries {
			entries[i] = Entry(e)
		}
		if err := idx.Insert(ctx, entries); err != nil {
			return nil, &CorruptIndexError{Path: dir, Reason: "invalid entries", Err: err}
		}
	}

	idx.logger.Info("loaded vector index",
		zap.String("path", dir),
		zap.Int("entries", idx.Len()),
		zap.Int("dimension", idx.Dimension()))
	return idx, nil
}

func readSnapshot(path string, m manifest) (snapshot, error) {
	var snap snapshot

	info, err := os.Stat(path)
	if err != nil {
		return snap, err
	}
	if info.Size() > maxSnapshotSize {
		return snap, fmt.Errorf("snapshot is %d bytes, limit is %d", info.Size(), maxSnapshotSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}

	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != m.Checksum {
		return snap, fmt.Errorf("checksum mismatch: manifest %s, file %s", m.Checksum, got)
	}

	var r io.Reader = bytes.NewReader(data)
	if m.Compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return snap, err
		}
		defer gz.Close()
		r = gz
	}
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return snap, err
	}
	if snap.Version != m.Version {
		return snap, fmt.Errorf("snapshot version %d does not match manifest version %d", snap.Version, m.Version)
	}
	return snap, nil
}
