package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/skymatch/internal/crossmatch"
	"github.com/banshee-data/skymatch/internal/fsutil"
	"github.com/banshee-data/skymatch/internal/monitoring"
)

// ErrBatchClosed is returned when a Batch is used after Commit or Discard.
var ErrBatchClosed = errors.New("export batch already committed or discarded")

type staged struct {
	tmp, final string
}

// Batch collects the artefacts of one run in a directory. Writes go to
// temporary names; Commit clears stale shards from earlier runs and renames
// everything into place, Discard removes the temporaries. A Batch is not
// safe for concurrent use.
type Batch struct {
	fsys   fsutil.FileSystem
	dir    string
	staged []staged
	stale  []string // glob patterns cleared on Commit
	closed bool
}

// NewBatch starts a batch writing into dir.
func NewBatch(fsys fsutil.FileSystem, dir string) *Batch {
	return &Batch{fsys: fsys, dir: dir}
}

// Dir returns the batch's output directory.
func (b *Batch) Dir() string { return b.dir }

// Pending returns the final paths of the staged artefacts, in staging order.
func (b *Batch) Pending() []string {
	out := make([]string, len(b.staged))
	for i, s := range b.staged {
		out[i] = s.final
	}
	return out
}

// WriteFile stages name, filled by write. A failed write leaves nothing
// behind and stages nothing.
func (b *Batch) WriteFile(name string, write func(w io.Writer) error) (err error) {
	if b.closed {
		return ErrBatchClosed
	}
	if err := b.fsys.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	final := filepath.Join(b.dir, name)
	tmp := tempName(final)
	f, err := b.fsys.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = b.fsys.Remove(tmp)
		}
	}()

	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	b.staged = append(b.staged, staged{tmp: tmp, final: final})
	return nil
}

// WriteCSV stages t as name with a header row.
func (b *Batch) WriteCSV(name string, t Table) error {
	err := b.WriteFile(name, func(f io.Writer) error {
		w := csv.NewWriter(f)
		if err := w.Write(t.ColumnNames()); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for i := 0; i < t.Len(); i++ {
			if err := w.Write(t.Values(i)); err != nil {
				return fmt.Errorf("write row %d: %w", i, err)
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return err
	}
	monitoring.Logf("staged %d rows for %s", t.Len(), name)
	return nil
}

// WriteMergedShards stages seq as merged-NNNNN-of-NNNNN.jsonl.zst shards
// and returns their final paths in shard order. Shards left in the
// directory by an earlier run are removed on Commit.
func (b *Batch) WriteMergedShards(ctx context.Context, seq *crossmatch.MergedSequence, opts ShardOptions) ([]string, error) {
	if b.closed {
		return nil, ErrBatchClosed
	}
	final, temps, err := writeShards(ctx, b.fsys, b.dir, seq, opts)
	if err != nil {
		return nil, err
	}
	for i := range final {
		b.staged = append(b.staged, staged{tmp: temps[i], final: final[i]})
	}
	b.stale = append(b.stale, shardGlob)
	monitoring.Logf("staged %d merged examples in %d shards", seq.Len(), len(final))
	return final, nil
}

// Commit removes stale outputs and renames every staged artefact into
// place. When a rename fails the remaining temporaries are discarded.
func (b *Batch) Commit() error {
	if b.closed {
		return ErrBatchClosed
	}
	keep := make(map[string]bool, len(b.staged))
	for _, s := range b.staged {
		keep[filepath.Clean(s.final)] = true
	}
	for _, pattern := range b.stale {
		matches, err := b.fsys.Glob(filepath.Join(b.dir, pattern))
		if err != nil {
			b.Discard()
			return fmt.Errorf("list stale outputs: %w", err)
		}
		for _, m := range matches {
			if keep[filepath.Clean(m)] {
				continue
			}
			if err := b.fsys.Remove(m); err != nil {
				b.Discard()
				return fmt.Errorf("remove stale %s: %w", m, err)
			}
		}
	}

	for i, s := range b.staged {
		if err := b.fsys.Rename(s.tmp, s.final); err != nil {
			b.staged = b.staged[i:]
			b.Discard()
			return fmt.Errorf("rename %s: %w", s.tmp, err)
		}
	}
	monitoring.Logf("committed %d files to %s", len(b.staged), b.dir)
	b.staged = nil
	b.closed = true
	return nil
}

// Discard removes every staged temporary. It is a no-op after Commit, so
// it can be deferred unconditionally.
func (b *Batch) Discard() {
	if b.closed {
		return
	}
	for _, s := range b.staged {
		_ = b.fsys.Remove(s.tmp)
	}
	b.staged = nil
	b.closed = true
}
