package catalog

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/banshee-data/skymatch/internal/fsutil"
	"github.com/banshee-data/skymatch/internal/security"
)

// File names inside a survey data directory.
const (
	CatalogFile        = "catalog.csv"
	RecordsFile        = "records.jsonl"
	RecordsFileZstd    = "records.jsonl.zst"
	DefaultSurveyLabel = "survey"
)

// Handle identifies a survey and where its data lives.
type Handle struct {
	Survey  string
	DataDir string
}

// Provider supplies catalogs and keyed record readers for survey handles.
type Provider interface {
	Catalog(ctx context.Context, h Handle) (*Catalog, error)
	Reader(ctx context.Context, h Handle) (KeyedReader, error)
}

// ResolveHandle turns a survey path, optionally relative to root, into a
// Handle. The survey name is the last path element.
func ResolveHandle(root, path string) Handle {
	path = strings.TrimSpace(path)
	if path == "" {
		return Handle{}
	}
	dir := path
	if root != "" && !filepath.IsAbs(path) {
		dir = filepath.Join(root, path)
	}
	dir = filepath.Clean(dir)
	name := filepath.Base(dir)
	if name == "." || name == string(filepath.Separator) {
		name = DefaultSurveyLabel
	}
	return Handle{Survey: name, DataDir: dir}
}

// ResolveSurvey is ResolveHandle for paths given on the command line: a
// relative path must stay inside root once symlinks are resolved.
func ResolveSurvey(root, path string) (Handle, error) {
	h := ResolveHandle(root, path)
	if h.DataDir == "" {
		return h, &ConfigurationError{Survey: h.Survey, Reason: "empty survey path"}
	}
	if root != "" && !filepath.IsAbs(strings.TrimSpace(path)) {
		if err := security.ValidatePathWithinDirectory(h.DataDir, root); err != nil {
			return h, &ConfigurationError{Survey: h.Survey, Reason: "survey path outside local_astropile_root", cause: err}
		}
	}
	return h, nil
}

// FileProvider reads surveys laid out as a directory holding catalog.csv and
// records.jsonl (optionally zstd compressed as records.jsonl.zst).
type FileProvider struct {
	FS fsutil.FileSystem
}

// NewFileProvider returns a provider over the OS filesystem.
func NewFileProvider() *FileProvider {
	return &FileProvider{FS: fsutil.OSFileSystem{}}
}

func (p *FileProvider) checkHandle(h Handle) error {
	if h.DataDir == "" {
		return &ConfigurationError{Survey: h.Survey, Reason: "no data directory configured"}
	}
	if !fsutil.IsDir(p.FS, h.DataDir) {
		return &ConfigurationError{Survey: h.Survey, Reason: fmt.Sprintf("data directory %s does not exist", h.DataDir)}
	}
	return nil
}

// Catalog loads and validates the survey's catalog table.
func (p *FileProvider) Catalog(ctx context.Context, h Handle) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.checkHandle(h); err != nil {
		return nil, err
	}

	path := filepath.Join(h.DataDir, CatalogFile)
	f, err := p.FS.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Survey: h.Survey, Reason: fmt.Sprintf("cannot open %s", path), cause: err}
	}
	defer f.Close()

	cat, err := ReadCSV(f, h.Survey)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return cat, nil
}

// Reader loads the survey's feature records into a RecordIndex.
func (p *FileProvider) Reader(ctx context.Context, h Handle) (KeyedReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.checkHandle(h); err != nil {
		return nil, err
	}

	if path := filepath.Join(h.DataDir, RecordsFileZstd); fsutil.Exists(p.FS, path) {
		f, err := p.FS.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader for %s: %w", path, err)
		}
		defer zr.Close()
		return p.readRecords(zr, h, path)
	}

	path := filepath.Join(h.DataDir, RecordsFile)
	f, err := p.FS.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Survey: h.Survey, Reason: fmt.Sprintf("no %s or %s in %s", RecordsFile, RecordsFileZstd, h.DataDir), cause: err}
	}
	defer f.Close()
	return p.readRecords(f, h, path)
}

func (p *FileProvider) readRecords(r io.Reader, h Handle, path string) (KeyedReader, error) {
	idx, err := ReadRecordsJSONL(r, h.Survey)
	if err != nil {
		return nil, fmt.Errorf("failed to load records %s: %w", path, err)
	}
	return idx, nil
}
