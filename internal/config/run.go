package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Defaults applied by the Get* accessors when a field is unset.
const (
	DefaultMatchingRadiusArcsec = 1.0
	DefaultNumProc              = 1
	DefaultZstdLevel            = 2
	DefaultHistogramBins        = 50
)

// RunConfig holds the options shared by the crossmatch and mastercat
// commands. Fields are pointers so a partial file only overrides what it
// names; command-line flags override the file.
type RunConfig struct {
	MatchingRadiusArcsec *float64 `json:"matching_radius_arcsec,omitempty"`
	NumProc              *int     `json:"num_proc,omitempty"`
	LocalAstropileRoot   *string  `json:"local_astropile_root,omitempty"`

	// Output
	WritePlots    *bool `json:"write_plots,omitempty"`
	ZstdLevel     *int  `json:"zstd_level,omitempty"` // 1 (fastest) .. 4 (best)
	HistogramBins *int  `json:"histogram_bins,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyRunConfig returns a RunConfig with every field unset.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// DefaultRunConfig returns a RunConfig with every field set to its default.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		MatchingRadiusArcsec: ptrFloat64(DefaultMatchingRadiusArcsec),
		NumProc:              ptrInt(DefaultNumProc),
		LocalAstropileRoot:   ptrString(""),
		WritePlots:           ptrBool(false),
		ZstdLevel:            ptrInt(DefaultZstdLevel),
		HistogramBins:        ptrInt(DefaultHistogramBins),
	}
}

// LoadRunConfig loads a RunConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file stay unset and fall back to defaults through the Get* methods.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *RunConfig) Validate() error {
	if c.MatchingRadiusArcsec != nil {
		r := *c.MatchingRadiusArcsec
		if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
			return fmt.Errorf("matching_radius_arcsec must be positive, got %v", r)
		}
	}
	if c.NumProc != nil && *c.NumProc < 1 {
		return fmt.Errorf("num_proc must be at least 1, got %d", *c.NumProc)
	}
	if c.ZstdLevel != nil && (*c.ZstdLevel < 1 || *c.ZstdLevel > 4) {
		return fmt.Errorf("zstd_level must be between 1 and 4, got %d", *c.ZstdLevel)
	}
	if c.HistogramBins != nil && *c.HistogramBins < 1 {
		return fmt.Errorf("histogram_bins must be at least 1, got %d", *c.HistogramBins)
	}
	return nil
}

// SetMatchingRadius overrides the matching radius.
func (c *RunConfig) SetMatchingRadius(arcsec float64) { c.MatchingRadiusArcsec = ptrFloat64(arcsec) }

// SetNumProc overrides the worker count.
func (c *RunConfig) SetNumProc(n int) { c.NumProc = ptrInt(n) }

// SetLocalAstropileRoot overrides the data root.
func (c *RunConfig) SetLocalAstropileRoot(root string) { c.LocalAstropileRoot = ptrString(root) }

// SetWritePlots overrides whether diagnostic plots are written.
func (c *RunConfig) SetWritePlots(v bool) { c.WritePlots = ptrBool(v) }

// GetMatchingRadiusArcsec returns the matching radius or the default.
func (c *RunConfig) GetMatchingRadiusArcsec() float64 {
	if c.MatchingRadiusArcsec == nil {
		return DefaultMatchingRadiusArcsec
	}
	return *c.MatchingRadiusArcsec
}

// GetNumProc returns num_proc or the default.
func (c *RunConfig) GetNumProc() int {
	if c.NumProc == nil {
		return DefaultNumProc
	}
	return *c.NumProc
}

// GetLocalAstropileRoot returns the data root, empty when unset.
func (c *RunConfig) GetLocalAstropileRoot() string {
	if c.LocalAstropileRoot == nil {
		return ""
	}
	return *c.LocalAstropileRoot
}

// GetWritePlots returns write_plots or the default.
func (c *RunConfig) GetWritePlots() bool {
	if c.WritePlots == nil {
		return false
	}
	return *c.WritePlots
}

// GetZstdLevel returns zstd_level or the default.
func (c *RunConfig) GetZstdLevel() int {
	if c.ZstdLevel == nil {
		return DefaultZstdLevel
	}
	return *c.ZstdLevel
}

// GetHistogramBins returns histogram_bins or the default.
func (c *RunConfig) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return DefaultHistogramBins
	}
	return *c.HistogramBins
}
