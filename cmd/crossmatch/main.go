// Command crossmatch matches two survey catalogs on the sky and writes the
// matched catalog, the merged per-object records and a run record into a
// cache directory.
//
//	crossmatch [flags] left_path right_path cache_dir
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/skymatch/internal/catalog"
	"github.com/banshee-data/skymatch/internal/config"
	"github.com/banshee-data/skymatch/internal/crossmatch"
	"github.com/banshee-data/skymatch/internal/db"
	"github.com/banshee-data/skymatch/internal/diagnostics"
	"github.com/banshee-data/skymatch/internal/export"
	"github.com/banshee-data/skymatch/internal/fsutil"
	"github.com/banshee-data/skymatch/internal/monitoring"
	"github.com/banshee-data/skymatch/internal/units"
	"github.com/banshee-data/skymatch/internal/version"
)

var errUsage = errors.New("usage: crossmatch [flags] left_path right_path cache_dir")

type options struct {
	cfg         *config.RunConfig
	catalogOnly bool
	shardSize   int
	left, right string
	cacheDir    string
}

// parseArgs accepts flags before, between or after the positional arguments.
func parseArgs(args []string, stderr io.Writer) (*options, bool, error) {
	fs := flag.NewFlagSet("crossmatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	root := fs.String("local_astropile_root", "", "Root directory survey paths are resolved against")
	radius := fs.Float64("matching_radius", config.DefaultMatchingRadiusArcsec, "Matching radius")
	radiusUnit := fs.String("radius_unit", units.Arcsecond, "Unit of --matching_radius: "+units.GetValidUnitsString())
	numProc := fs.Int("num_proc", config.DefaultNumProc, "Number of concurrent loaders and shard writers")
	catalogOnly := fs.Bool("catalog_only", false, "Write only the matched catalog, skip merged records")
	configPath := fs.String("config", "", "Path to a JSON run configuration")
	plots := fs.Bool("plots", false, "Write separation histograms (PNG and HTML)")
	shardSize := fs.Int("shard_size", export.DefaultShardSize, "Merged examples per output shard")
	showVersion := fs.Bool("version", false, "Print version and exit")

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, false, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if *showVersion {
		return nil, true, nil
	}
	if len(positional) != 3 {
		return nil, false, errUsage
	}
	if !units.IsValid(*radiusUnit) {
		return nil, false, fmt.Errorf("invalid radius_unit %q, must be one of: %s", *radiusUnit, units.GetValidUnitsString())
	}

	cfg := config.EmptyRunConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadRunConfig(*configPath); err != nil {
			return nil, false, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "local_astropile_root":
			cfg.SetLocalAstropileRoot(*root)
		case "matching_radius":
			cfg.SetMatchingRadius(units.ToArcsec(*radius, *radiusUnit))
		case "num_proc":
			cfg.SetNumProc(*numProc)
		case "plots":
			cfg.SetWritePlots(*plots)
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid configuration: %w", err)
	}

	return &options{
		cfg:         cfg,
		catalogOnly: *catalogOnly,
		shardSize:   *shardSize,
		left:        positional[0],
		right:       positional[1],
		cacheDir:    positional[2],
	}, false, nil
}

type survey struct {
	handle catalog.Handle
	cat    *catalog.Catalog
	reader catalog.KeyedReader
}

func load(ctx context.Context, provider catalog.Provider, opts *options) (*survey, *survey, error) {
	root := opts.cfg.GetLocalAstropileRoot()
	left, right := &survey{}, &survey{}
	var err error
	if left.handle, err = catalog.ResolveSurvey(root, opts.left); err != nil {
		return nil, nil, err
	}
	if right.handle, err = catalog.ResolveSurvey(root, opts.right); err != nil {
		return nil, nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.cfg.GetNumProc())
	for _, s := range []*survey{left, right} {
		g.Go(func() error {
			cat, err := provider.Catalog(gctx, s.handle)
			if err != nil {
				return err
			}
			s.cat = cat
			monitoring.Logf("loaded %d objects from %s", cat.Len(), s.handle.DataDir)
			return nil
		})
		if !opts.catalogOnly {
			g.Go(func() error {
				r, err := provider.Reader(gctx, s.handle)
				if err != nil {
					return err
				}
				s.reader = r
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, showVersion, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	if showVersion {
		fmt.Fprintf(stdout, "crossmatch %s\n", version.String())
		return nil
	}

	fsys := fsutil.OSFileSystem{}
	provider := &catalog.FileProvider{FS: fsys}
	radius := opts.cfg.GetMatchingRadiusArcsec()

	done := monitoring.Stage("load %s and %s", opts.left, opts.right)
	left, right, err := load(ctx, provider, opts)
	if err != nil {
		return err
	}
	done()

	done = monitoring.Stage("match %s x %s within %g arcsec", left.handle.Survey, right.handle.Survey, radius)
	matched, seq, err := crossmatch.CrossMatch(left.cat, right.cat, radius, crossmatch.Options{
		LeftReader:  left.reader,
		RightReader: right.reader,
		CatalogOnly: opts.catalogOnly,
	})
	if err != nil {
		return err
	}
	done()
	monitoring.Logf("%d of %d %s objects matched", matched.Len(), left.cat.Len(), left.handle.Survey)

	// Outputs are staged and committed only after the run record is stored.
	batch := export.NewBatch(fsys, opts.cacheDir)
	defer batch.Discard()

	if err := batch.WriteCSV(export.MatchedCatalogFile, matched); err != nil {
		return err
	}

	if seq != nil {
		_, err := batch.WriteMergedShards(ctx, seq, export.ShardOptions{
			ShardSize: opts.shardSize,
			NumProc:   opts.cfg.GetNumProc(),
			Level:     opts.cfg.GetZstdLevel(),
		})
		if err != nil {
			return fmt.Errorf("failed to write merged records: %w", err)
		}
	}

	if opts.cfg.GetWritePlots() {
		if err := writePlots(batch, opts, matched, radius); err != nil {
			return err
		}
	}

	store, err := db.NewDB(filepath.Join(opts.cacheDir, db.DefaultFileName))
	if err != nil {
		return err
	}
	defer store.Close()
	runRec := &db.Run{
		RadiusArcsec: radius,
		Surveys:      []string{left.handle.Survey, right.handle.Survey},
		Version:      version.Version,
	}
	if err := store.SaveCrossMatch(ctx, runRec, matched); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "run %s: %d matched pairs, %s\n", runRec.RunID, matched.Len(), diagnostics.Summarize(matched.Separation))
	return nil
}

func writePlots(batch *export.Batch, opts *options, matched *crossmatch.MatchedCatalog, radius float64) error {
	bins := opts.cfg.GetHistogramBins()
	sep := matched.Separation
	title := fmt.Sprintf("%s x %s", matched.Left.Survey, matched.Right.Survey)

	err := batch.WriteFile(export.SeparationsPNGFile, func(w io.Writer) error {
		return diagnostics.WritePNG(w, sep, bins, radius)
	})
	if err != nil {
		return err
	}
	return batch.WriteFile(export.SeparationsHTML, func(w io.Writer) error {
		return diagnostics.WriteHTML(w, title, sep, bins, radius)
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("crossmatch: %v", err)
	}
}
