package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/skymatch/internal/crossmatch"
	"github.com/banshee-data/skymatch/internal/fsutil"
)

// DefaultShardSize is the target number of merged examples per shard.
const DefaultShardSize = 10000

// ShardName returns the file name of shard i out of n.
func ShardName(i, n int) string {
	return fmt.Sprintf("merged-%05d-of-%05d.jsonl.zst", i, n)
}

// ShardOptions controls WriteMergedShards.
type ShardOptions struct {
	ShardSize int // examples per shard; DefaultShardSize when <= 0
	NumProc   int // concurrent shard writers; 1 when <= 0
	Level     int // zstd level 1 (fastest) .. 4 (best)
}

// ShardCount returns how many shards n examples occupy. An empty sequence
// still gets one (empty) shard so readers find a well-formed set.
func ShardCount(n, shardSize int) int {
	if shardSize <= 0 {
		shardSize = DefaultShardSize
	}
	if n == 0 {
		return 1
	}
	return (n + shardSize - 1) / shardSize
}

// writeShards drains seq into zstd-compressed JSON-lines shards under
// temporary names in dir. Each shard pulls its own contiguous Range of seq,
// and up to opts.NumProc shards are written at once. seq itself is not
// advanced. On failure every temporary shard is removed.
func writeShards(ctx context.Context, fsys fsutil.FileSystem, dir string, seq *crossmatch.MergedSequence, opts ShardOptions) (final, temps []string, err error) {
	size := opts.ShardSize
	if size <= 0 {
		size = DefaultShardSize
	}
	procs := opts.NumProc
	if procs <= 0 {
		procs = 1
	}
	level := zstd.EncoderLevel(opts.Level)
	if opts.Level < int(zstd.SpeedFastest) || opts.Level > int(zstd.SpeedBestCompression) {
		level = zstd.SpeedDefault
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output directory: %w", err)
	}

	n := ShardCount(seq.Len(), size)
	final = make([]string, n)
	temps = make([]string, n)
	for i := range final {
		final[i] = filepath.Join(dir, ShardName(i, n))
		temps[i] = tempName(final[i])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(procs)
	for i := 0; i < n; i++ {
		part := seq.Range(i*size, (i+1)*size)
		tmp := temps[i]
		g.Go(func() error {
			if err := writeShard(gctx, fsys, tmp, part, level); err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, tmp := range temps {
			_ = fsys.Remove(tmp)
		}
		return nil, nil, err
	}
	return final, temps, nil
}

func writeShard(ctx context.Context, fsys fsutil.FileSystem, path string, seq *crossmatch.MergedSequence, level zstd.EncoderLevel) error {
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(level), zstd.WithZeroFrames(true))
	if err != nil {
		f.Close()
		return fmt.Errorf("create zstd writer: %w", err)
	}

	je := json.NewEncoder(enc)
	for seq.Next() {
		if err := ctx.Err(); err != nil {
			enc.Close()
			f.Close()
			return err
		}
		if err := je.Encode(seq.Example()); err != nil {
			enc.Close()
			f.Close()
			return fmt.Errorf("encode example: %w", err)
		}
	}
	if err := seq.Err(); err != nil {
		enc.Close()
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("flush zstd stream: %w", err)
	}
	return f.Close()
}

// ReadMergedShards yields the examples stored in the given shard files, in
// order. A decode failure is yielded once with a nil example and ends the
// iteration.
func ReadMergedShards(fsys fsutil.FileSystem, paths []string) iter.Seq2[crossmatch.MergedExample, error] {
	return func(yield func(crossmatch.MergedExample, error) bool) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			yield(nil, err)
			return
		}
		defer dec.Close()

		for _, p := range paths {
			f, err := fsys.Open(p)
			if err != nil {
				yield(nil, err)
				return
			}
			if err := dec.Reset(f); err != nil {
				f.Close()
				yield(nil, fmt.Errorf("%s: %w", p, err))
				return
			}
			sc := bufio.NewScanner(dec)
			sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
			for sc.Scan() {
				d := json.NewDecoder(strings.NewReader(sc.Text()))
				d.UseNumber()
				var ex crossmatch.MergedExample
				if err := d.Decode(&ex); err != nil {
					f.Close()
					yield(nil, fmt.Errorf("%s: %w", p, err))
					return
				}
				if !yield(ex, nil) {
					f.Close()
					return
				}
			}
			f.Close()
			if err := sc.Err(); err != nil {
				yield(nil, fmt.Errorf("%s: %w", p, err))
				return
			}
		}
	}
}
