// Command mastercat builds a deduplicated master catalog from several
// surveys, writes it as a wide CSV and stores it in the cache directory's
// database so later runs can extend it with -append.
//
//	mastercat -out DIR [-radius R] [-radius_unit U] [-append] survey_path...
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
	"github.com/banshee-data/skymatch/internal/db"
	"github.com/banshee-data/skymatch/internal/export"
	"github.com/banshee-data/skymatch/internal/fsutil"
	"github.com/banshee-data/skymatch/internal/mastercat"
	"github.com/banshee-data/skymatch/internal/monitoring"
	"github.com/banshee-data/skymatch/internal/units"
	"github.com/banshee-data/skymatch/internal/version"
)

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mastercat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "Output directory (required)")
	radius := fs.Float64("radius", config.DefaultMatchingRadiusArcsec, "Matching radius")
	radiusUnit := fs.String("radius_unit", units.Arcsecond, "Unit of -radius: "+units.GetValidUnitsString())
	appendMode := fs.Bool("append", false, "Extend the master catalog stored in -out")
	root := fs.String("local_astropile_root", "", "Root directory survey paths are resolved against")
	numProc := fs.Int("num_proc", config.DefaultNumProc, "Number of concurrent catalog loaders")
	configPath := fs.String("config", "", "Path to a JSON run configuration")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "mastercat %s\n", version.String())
		return nil
	}
	if *out == "" {
		return errors.New("-out is required")
	}
	if !units.IsValid(*radiusUnit) {
		return fmt.Errorf("invalid radius_unit %q, must be one of: %s", *radiusUnit, units.GetValidUnitsString())
	}

	cfg := config.EmptyRunConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadRunConfig(*configPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "radius":
			cfg.SetMatchingRadius(units.ToArcsec(*radius, *radiusUnit))
		case "num_proc":
			cfg.SetNumProc(*numProc)
		case "local_astropile_root":
			cfg.SetLocalAstropileRoot(*root)
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fsys := fsutil.OSFileSystem{}
	if err := fsys.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	store, err := db.NewDB(filepath.Join(*out, db.DefaultFileName))
	if err != nil {
		return err
	}
	defer store.Close()

	builder, err := newBuilder(ctx, store, cfg.GetMatchingRadiusArcsec(), *appendMode)
	if err != nil {
		return err
	}

	inputs, err := loadSurveys(ctx, &catalog.FileProvider{FS: fsys}, cfg, fs.Args())
	if err != nil {
		return err
	}
	for _, in := range inputs {
		done := monitoring.Stage("add %s (%d objects)", in.Survey, in.Catalog.Len())
		if err := builder.Add(in.Catalog, in.Survey); err != nil {
			return fmt.Errorf("failed to add survey %q: %w", in.Survey, err)
		}
		done()
	}

	cat := builder.Build()
	batch := export.NewBatch(fsys, *out)
	defer batch.Discard()
	if err := batch.WriteCSV(export.MasterCatalogFile, cat); err != nil {
		return err
	}
	runRec := &db.Run{RadiusArcsec: builder.Radius(), Version: version.Version}
	if err := store.SaveMaster(ctx, runRec, cat); err != nil {
		return fmt.Errorf("failed to store master catalog: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "run %s: %d objects from %d surveys, %d seen by more than one\n",
		runRec.RunID, cat.Len(), len(cat.Surveys), cat.MatchedCount())
	return nil
}

func newBuilder(ctx context.Context, store *db.DB, radius float64, appendMode bool) (*mastercat.Builder, error) {
	if !appendMode {
		return mastercat.NewBuilder(radius)
	}
	stored, err := store.LoadMaster(ctx)
	if errors.Is(err, db.ErrNoMaster) {
		monitoring.Logf("no stored master catalog, starting a new one")
		return mastercat.NewBuilder(radius)
	}
	if err != nil {
		return nil, err
	}
	if stored.RadiusArcsec != radius {
		return nil, fmt.Errorf("stored master catalog was built with radius %g arcsec, not %g", stored.RadiusArcsec, radius)
	}
	monitoring.Logf("restored master catalog: %d objects from %v", len(stored.Rows), stored.Surveys)
	return mastercat.Restore(stored.RadiusArcsec, stored.Surveys, stored.Rows)
}

// loadSurveys reads the catalogs concurrently and returns them in argument
// order, which is the order they are merged in.
func loadSurveys(ctx context.Context, provider catalog.Provider, cfg *config.RunConfig, paths []string) ([]mastercat.Input, error) {
	inputs := make([]mastercat.Input, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.GetNumProc())
	for i, p := range paths {
		h, err := catalog.ResolveSurvey(cfg.GetLocalAstropileRoot(), p)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			cat, err := provider.Catalog(gctx, h)
			if err != nil {
				return err
			}
			inputs[i] = mastercat.Input{Catalog: cat, Survey: h.Survey}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("mastercat: %v", err)
	}
}
