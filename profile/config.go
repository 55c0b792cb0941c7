package profile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// defaultTeleportMargin is the fraction of each axis range by which the
// estimated imaging volume is shrunk during teleport analysis when no margin
// is configured.
const defaultTeleportMargin = 0.10

// Config holds the filter thresholds and analysis switches for Build. Pointer
// fields distinguish "not configured" from a configured zero: a nil threshold
// disables its filter entirely. The same schema loads from JSON, and fields
// omitted there stay nil, so partial config files are safe.
type Config struct {
	// TrimDisplacement excludes tracks whose net displacement falls below
	// this value. The threshold is inclusive: a track exactly at it is kept.
	TrimDisplacement *float64 `json:"trim_displacement,omitempty"`

	// TrimObservations excludes tracks with fewer than this many positions.
	TrimObservations *int `json:"trim_observations,omitempty"`

	// TrimDuration excludes tracks shorter than this many minutes.
	TrimDuration *float64 `json:"trim_duration,omitempty"`

	// TrimArrestCoefficient excludes tracks whose arrest coefficient is at
	// or above this value. The threshold is strict: retained tracks sit
	// below it. Must lie in (0, 1].
	TrimArrestCoefficient *float64 `json:"trim_arrest_coefficient,omitempty"`

	// AnalyseTeleports runs teleport analysis immediately after
	// construction.
	AnalyseTeleports *bool `json:"analyse_teleports,omitempty"`

	// TeleportMargin is the fraction of each axis range by which the
	// estimated imaging volume is shrunk before teleport detection. Must
	// lie in [0, 0.5); defaults to 0.10.
	TeleportMargin *float64 `json:"teleport_margin,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }

// LoadConfig loads a Config from a JSON file. The path must carry a .json
// extension and the file must be under the maximum size. The loaded config is
// validated before being returned.
func LoadConfig(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("%w: config file must have .json extension, got %q", ErrConfiguration, ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return Config{}, fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrConfiguration, fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every configured value is usable. Unset fields are
// always valid.
func (c Config) Validate() error {
	if c.TrimDisplacement != nil {
		if v := *c.TrimDisplacement; math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: trim_displacement must be non-negative, got %v", ErrConfiguration, v)
		}
	}
	if c.TrimObservations != nil {
		if v := *c.TrimObservations; v < 0 {
			return fmt.Errorf("%w: trim_observations must be non-negative, got %d", ErrConfiguration, v)
		}
	}
	if c.TrimDuration != nil {
		if v := *c.TrimDuration; math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: trim_duration must be non-negative, got %v", ErrConfiguration, v)
		}
	}
	if c.TrimArrestCoefficient != nil {
		// An arrest coefficient is a fraction of time; a threshold of 0
		// would exclude everything and one above 1 excludes nothing.
		if v := *c.TrimArrestCoefficient; math.IsNaN(v) || v <= 0 || v > 1 {
			return fmt.Errorf("%w: trim_arrest_coefficient must be in (0, 1], got %v", ErrConfiguration, v)
		}
	}
	if c.TeleportMargin != nil {
		if v := *c.TeleportMargin; math.IsNaN(v) || v < 0 || v >= 0.5 {
			return fmt.Errorf("%w: teleport_margin must be in [0, 0.5), got %v", ErrConfiguration, v)
		}
	}
	return nil
}

// GetAnalyseTeleports returns the analyse_teleports value or the default.
func (c Config) GetAnalyseTeleports() bool {
	if c.AnalyseTeleports == nil {
		return false // default: teleport analysis is opt-in
	}
	return *c.AnalyseTeleports
}

// GetTeleportMargin returns the teleport_margin value or the default.
func (c Config) GetTeleportMargin() float64 {
	if c.TeleportMargin == nil {
		return defaultTeleportMargin
	}
	return *c.TeleportMargin
}
