package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCANDOCK_OUTPUT_DIR", filepath.Join(dir, "scans"))

	s, err := Load(filepath.Join(dir, "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Format != "pdf" || s.Resolution != 300 {
		t.Errorf("unexpected defaults: %+v", s)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(s *Settings) {}, false},
		{"bad format", func(s *Settings) { s.Format = "bmp" }, true},
		{"resolution too low", func(s *Settings) { s.Resolution = 10 }, true},
		{"resolution too high", func(s *Settings) { s.Resolution = 9600 }, true},
		{"no output dir", func(s *Settings) { s.OutputDir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			s.OutputDir = filepath.Join(dir, "scans")
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scandock.yaml")

	s := Default()
	s.OutputDir = filepath.Join(dir, "scans")
	s.Resolution = 600
	s.Format = "jpeg"
	s.Duplex = true
	s.Upstream.URL = "http://paperless.local:8000"

	if err := Save(path, s); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp settings file must not remain after save")
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Resolution != 600 || got.Format != "jpeg" || !got.Duplex {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Upstream.URL != "http://paperless.local:8000" {
		t.Errorf("upstream URL lost: %+v", got.Upstream)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCANDOCK_OUTPUT_DIR", filepath.Join(dir, "elsewhere"))
	t.Setenv("SCANDOCK_RESOLUTION", "150")
	t.Setenv("SCANDOCK_DEVICE", "net:10.0.0.5:pixma")
	t.Setenv("PAPERLESS_TOKEN", "secret")

	s, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Resolution != 150 {
		t.Errorf("resolution = %d, want 150", s.Resolution)
	}
	if s.Device != "net:10.0.0.5:pixma" {
		t.Errorf("device override not applied: %q", s.Device)
	}
	if s.Upstream.Token != "secret" {
		t.Errorf("token override not applied")
	}
}

func TestSaveRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scandock.yaml")

	s := Default()
	s.Format = "docx"
	if err := Save(path, s); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid settings must not be written")
	}
}
