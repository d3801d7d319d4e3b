package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KeyueZhu/XenomatiX/internal/loader"
	"github.com/KeyueZhu/XenomatiX/internal/sampler"
	"github.com/KeyueZhu/XenomatiX/internal/tiler"
)

// DefaultConfigPath is the path to the canonical sampling defaults file.
const DefaultConfigPath = "config/sampling.defaults.json"

// SamplingConfig holds every tunable of the block pipeline. Fields left out
// of a JSON file fall back to the built-in defaults of the Get* methods, so
// partial configs are safe.
type SamplingConfig struct {
	// Scene store
	NumClasses *int  `json:"num_classes,omitempty"`
	TestScene  *int  `json:"test_scene,omitempty"`
	ExactSplit *bool `json:"exact_split,omitempty"` // false selects the substring split rule

	// Random block sampler
	NumPoint     *int     `json:"num_point,omitempty"`
	BlockSize    *float64 `json:"block_size,omitempty"`
	SampleRate   *float64 `json:"sample_rate,omitempty"`
	DensityFloor *int     `json:"density_floor,omitempty"`
	MaxAttempts  *int     `json:"max_attempts,omitempty"`

	// Whole-scene tiler
	BlockPoints   *int     `json:"block_points,omitempty"`
	TileBlockSize *float64 `json:"tile_block_size,omitempty"`
	Stride        *float64 `json:"stride,omitempty"`
	Padding       *float64 `json:"padding,omitempty"`

	// Loader
	BatchSize *int    `json:"batch_size,omitempty"`
	Workers   *int    `json:"workers,omitempty"`
	Shuffle   *bool   `json:"shuffle,omitempty"`
	DropLast  *bool   `json:"drop_last,omitempty"`
	Seed      *uint64 `json:"seed,omitempty"`
	Epochs    *int    `json:"epochs,omitempty"`
}

// EmptySamplingConfig returns a SamplingConfig with all fields set to nil.
func EmptySamplingConfig() *SamplingConfig {
	return &SamplingConfig{}
}

// LoadSamplingConfig loads a SamplingConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadSamplingConfig(path string) (*SamplingConfig, error) {
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

	cfg := EmptySamplingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *SamplingConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSamplingConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *SamplingConfig) Validate() error {
	positiveInts := []struct {
		name string
		v    *int
	}{
		{"num_classes", c.NumClasses},
		{"num_point", c.NumPoint},
		{"block_points", c.BlockPoints},
		{"batch_size", c.BatchSize},
		{"epochs", c.Epochs},
	}
	for _, f := range positiveInts {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.name, *f.v)
		}
	}

	positiveFloats := []struct {
		name string
		v    *float64
	}{
		{"block_size", c.BlockSize},
		{"sample_rate", c.SampleRate},
		{"tile_block_size", c.TileBlockSize},
		{"stride", c.Stride},
	}
	for _, f := range positiveFloats {
		if f.v != nil && !(*f.v > 0) {
			return fmt.Errorf("%s must be positive, got %v", f.name, *f.v)
		}
	}

	if c.Padding != nil && !(*c.Padding >= 0) {
		return fmt.Errorf("padding must be non-negative, got %v", *c.Padding)
	}
	if c.MaxAttempts != nil && *c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be non-negative, got %d", *c.MaxAttempts)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.TestScene != nil && *c.TestScene < 0 {
		return fmt.Errorf("test_scene must be non-negative, got %d", *c.TestScene)
	}
	return nil
}

// GetNumClasses returns num_classes or the default of 2.
func (c *SamplingConfig) GetNumClasses() int {
	if c.NumClasses == nil {
		return 2
	}
	return *c.NumClasses
}

// GetTestScene returns test_scene or the default.
func (c *SamplingConfig) GetTestScene() int {
	if c.TestScene == nil {
		return 1
	}
	return *c.TestScene
}

// GetExactSplit returns exact_split or the default.
func (c *SamplingConfig) GetExactSplit() bool {
	if c.ExactSplit == nil {
		return true
	}
	return *c.ExactSplit
}

// GetNumPoint returns num_point or the default.
func (c *SamplingConfig) GetNumPoint() int {
	if c.NumPoint == nil {
		return sampler.DefaultNumPoint
	}
	return *c.NumPoint
}

// GetBlockSize returns block_size or the default.
func (c *SamplingConfig) GetBlockSize() float64 {
	if c.BlockSize == nil {
		return sampler.DefaultBlockSize
	}
	return *c.BlockSize
}

// GetSampleRate returns sample_rate or the default.
func (c *SamplingConfig) GetSampleRate() float64 {
	if c.SampleRate == nil {
		return sampler.DefaultSampleRate
	}
	return *c.SampleRate
}

// GetDensityFloor returns density_floor, or 0 meaning "use num_point".
func (c *SamplingConfig) GetDensityFloor() int {
	if c.DensityFloor == nil {
		return 0
	}
	return *c.DensityFloor
}

// GetMaxAttempts returns max_attempts or the default.
func (c *SamplingConfig) GetMaxAttempts() int {
	if c.MaxAttempts == nil {
		return sampler.DefaultMaxAttempts
	}
	return *c.MaxAttempts
}

// GetBlockPoints returns block_points or the default.
func (c *SamplingConfig) GetBlockPoints() int {
	if c.BlockPoints == nil {
		return tiler.DefaultBlockPoints
	}
	return *c.BlockPoints
}

// GetTileBlockSize returns tile_block_size or the default.
func (c *SamplingConfig) GetTileBlockSize() float64 {
	if c.TileBlockSize == nil {
		return tiler.DefaultBlockSize
	}
	return *c.TileBlockSize
}

// GetStride returns stride or the default.
func (c *SamplingConfig) GetStride() float64 {
	if c.Stride == nil {
		return tiler.DefaultStride
	}
	return *c.Stride
}

// GetPadding returns padding or the default.
func (c *SamplingConfig) GetPadding() float64 {
	if c.Padding == nil {
		return tiler.DefaultPadding
	}
	return *c.Padding
}

// GetBatchSize returns batch_size or the default.
func (c *SamplingConfig) GetBatchSize() int {
	if c.BatchSize == nil {
		return 16
	}
	return *c.BatchSize
}

// GetWorkers returns workers or the default (build on the caller).
func (c *SamplingConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetShuffle returns shuffle or the default.
func (c *SamplingConfig) GetShuffle() bool {
	if c.Shuffle == nil {
		return true
	}
	return *c.Shuffle
}

// GetDropLast returns drop_last or the default.
func (c *SamplingConfig) GetDropLast() bool {
	if c.DropLast == nil {
		return false
	}
	return *c.DropLast
}

// GetSeed returns seed or the default.
func (c *SamplingConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 123
	}
	return *c.Seed
}

// GetEpochs returns epochs or the default.
func (c *SamplingConfig) GetEpochs() int {
	if c.Epochs == nil {
		return 4
	}
	return *c.Epochs
}

// SamplerOptions converts the config to sampler options.
func (c *SamplingConfig) SamplerOptions() sampler.Options {
	return sampler.Options{
		NumPoint:     c.GetNumPoint(),
		BlockSize:    c.GetBlockSize(),
		SampleRate:   c.GetSampleRate(),
		DensityFloor: c.GetDensityFloor(),
		MaxAttempts:  c.GetMaxAttempts(),
	}
}

// TilerOptions converts the config to tiler options.
func (c *SamplingConfig) TilerOptions() tiler.Options {
	return tiler.Options{
		BlockPoints: c.GetBlockPoints(),
		BlockSize:   c.GetTileBlockSize(),
		Stride:      c.GetStride(),
		Padding:     c.GetPadding(),
	}
}

// LoaderOptions converts the config to loader options.
func (c *SamplingConfig) LoaderOptions() loader.Options {
	return loader.Options{
		BatchSize: c.GetBatchSize(),
		Workers:   c.GetWorkers(),
		Shuffle:   c.GetShuffle(),
		DropLast:  c.GetDropLast(),
		Seed:      c.GetSeed(),
	}
}

// JSON returns the config encoded as compact JSON, for run records.
func (c *SamplingConfig) JSON() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}
