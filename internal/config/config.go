// Package config holds the service settings: where scans land, how the
// toolchain is invoked, and where combined documents are uploaded. Settings
// live in a YAML file with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

var validFormats = map[string]bool{
	"pdf":  true,
	"png":  true,
	"jpeg": true,
	"tiff": true,
}

// Settings is everything the scan pipeline reads at request time.
type Settings struct {
	OutputDir  string  `yaml:"output_dir" json:"output_dir"`
	Resolution int     `yaml:"resolution" json:"resolution"`
	Format     string  `yaml:"format" json:"format"`
	Device     string  `yaml:"device,omitempty" json:"device,omitempty"` // explicit override, skips discovery
	Source     string  `yaml:"source,omitempty" json:"source,omitempty"`
	Duplex     bool    `yaml:"duplex" json:"duplex"`
	SkipBlank  bool    `yaml:"skip_blank_pages" json:"skip_blank_pages"`
	PageWidth  float64 `yaml:"page_width,omitempty" json:"page_width,omitempty"` // mm
	PageHeight float64 `yaml:"page_height,omitempty" json:"page_height,omitempty"`

	Upstream Upstream `yaml:"upstream" json:"upstream"`
}

// Upstream points at the document-management backend.
type Upstream struct {
	URL   string `yaml:"url" json:"url"`
	Token string `yaml:"token,omitempty" json:"-"`
}

// Default returns the settings used when no file exists yet.
func Default() Settings {
	return Settings{
		OutputDir:  "scans",
		Resolution: 300,
		Format:     "pdf",
	}
}

// Load reads the settings file at path, falling back to defaults when it does
// not exist, then applies environment overrides and validates the result.
func Load(path string) (Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run; defaults plus env are fine.
	case err != nil:
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse settings file: %w", err)
		}
	}

	s.applyEnv()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes the settings atomically via a temp file rename.
func Save(path string, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

// Validate checks ranges and enumerations and makes sure the output directory
// is usable.
func (s *Settings) Validate() error {
	if !validFormats[s.Format] {
		return fmt.Errorf("unsupported scan format %q (want pdf, png, jpeg, or tiff)", s.Format)
	}
	if s.Resolution < 50 || s.Resolution > 1200 {
		return fmt.Errorf("resolution %d out of range (50-1200 DPI)", s.Resolution)
	}
	if s.OutputDir == "" {
		return fmt.Errorf("output directory must be set")
	}
	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return fmt.Errorf("output directory is not usable: %w", err)
	}
	return nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv("SCANDOCK_OUTPUT_DIR"); v != "" {
		s.OutputDir = v
	}
	if v := os.Getenv("SCANDOCK_FORMAT"); v != "" {
		s.Format = v
	}
	if v := os.Getenv("SCANDOCK_DEVICE"); v != "" {
		s.Device = v
	}
	if v := os.Getenv("SCANDOCK_RESOLUTION"); v != "" {
		if dpi, err := strconv.Atoi(v); err == nil {
			s.Resolution = dpi
		}
	}
	if v := os.Getenv("PAPERLESS_URL"); v != "" {
		s.Upstream.URL = v
	}
	if v := os.Getenv("PAPERLESS_TOKEN"); v != "" {
		s.Upstream.Token = v
	}
}
