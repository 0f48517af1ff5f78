package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allEnv = []string{
	EnvConfigEnv,
	EnvCameraDriver, EnvCameraURL, EnvCameraDir, EnvCameraFacing, EnvCameraWidth, EnvCameraHeight, EnvCameraPollInterval,
	EnvCaptureEncoding, EnvCaptureQuality, EnvCaptureMaxWidth, EnvCaptureMaxHeight,
	EnvCompressionBudget, EnvCompressionQuality,
	EnvStoreURL, EnvStoreScanPath, EnvStoreArtifactPath, EnvStoreAPIKey,
	EnvIdentityCredentialFile, EnvServerPort,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestFinalizeDefaults(t *testing.T) {
	clearEnv(t)

	cfg := &Config{Identity: IdentityConfig{CredentialFile: "/tmp/cred.yaml"}}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}

	if cfg.Camera.Driver != DriverHTTP || cfg.Camera.Facing != "environment" {
		t.Errorf("Expected http driver facing environment, got %s/%s", cfg.Camera.Driver, cfg.Camera.Facing)
	}
	if cfg.Camera.Width != 1920 || cfg.Camera.Height != 1080 {
		t.Errorf("Expected 1920x1080, got %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.PollIntervalDuration() != 200*time.Millisecond {
		t.Errorf("Expected 200ms poll interval, got %v", cfg.Camera.PollIntervalDuration())
	}
	if cfg.Capture.Encoding != "jpeg" || cfg.Capture.Quality != 80 {
		t.Errorf("Expected jpeg at 80, got %s at %d", cfg.Capture.Encoding, cfg.Capture.Quality)
	}
	if cfg.Compression.BudgetBytes() != 500_000 || cfg.Compression.Quality != 70 {
		t.Errorf("Expected 500000 bytes at 70, got %d at %d", cfg.Compression.BudgetBytes(), cfg.Compression.Quality)
	}
	if cfg.Store.ScanPath != "/scan" || cfg.Store.ArtifactPath != "/clever-service" {
		t.Errorf("Expected default store paths, got %s %s", cfg.Store.ScanPath, cfg.Store.ArtifactPath)
	}
	if cfg.Identity.TokenEnv != "PAGESCAN_TOKEN" {
		t.Errorf("Expected PAGESCAN_TOKEN, got %s", cfg.Identity.TokenEnv)
	}
	if cfg.Server.Port != "8888" {
		t.Errorf("Expected port 8888, got %s", cfg.Server.Port)
	}
	if _, err := cfg.Store.Client(); err == nil {
		t.Errorf("Expected error building a client without a store url")
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "pagescan.yaml", `
camera:
  driver: dir
  dir: /srv/frames
capture:
  encoding: png
  max_width: 1600
compression:
  budget: 1MB
store:
  url: https://example.supabase.co/functions/v1
  api_key: from-file
server:
  port: "9000"
`)
	t.Setenv(EnvStoreAPIKey, "from-env")
	t.Setenv(EnvCompressionBudget, "250KB")
	t.Setenv(EnvCaptureMaxHeight, "1200")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}

	if cfg.Camera.Driver != DriverDir || cfg.Camera.Dir != "/srv/frames" {
		t.Errorf("Expected dir driver, got %+v", cfg.Camera)
	}
	if cfg.Capture.Encoding != "png" {
		t.Errorf("Expected png, got %s", cfg.Capture.Encoding)
	}
	if cfg.Capture.MaxWidth != 1600 || cfg.Capture.MaxHeight != 1200 {
		t.Errorf("Expected max size 1600x1200, got %dx%d", cfg.Capture.MaxWidth, cfg.Capture.MaxHeight)
	}
	if cfg.Compression.BudgetBytes() != 250_000 {
		t.Errorf("Expected env budget 250000, got %d", cfg.Compression.BudgetBytes())
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Server.Port)
	}

	client, err := cfg.Store.Client()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if client.APIKey != "from-env" || client.BaseURL != "https://example.supabase.co/functions/v1" {
		t.Errorf("Expected env api key and file url, got %s %s", client.APIKey, client.BaseURL)
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), "pagescan.toml", `
[camera]
url = "https://phone.local/shot.jpg"
facing = "user"

[compression]
quality = 60
`)

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Camera.URL != "https://phone.local/shot.jpg" || cfg.Camera.Facing != "user" {
		t.Errorf("Expected camera section from toml, got %+v", cfg.Camera)
	}
	if cfg.Compression.Quality != 60 {
		t.Errorf("Expected quality 60, got %d", cfg.Compression.Quality)
	}
}

func TestLoadOverlay(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "pagescan.yaml", "store:\n  url: https://prod.example.org\n  api_key: base\n")
	writeFile(t, dir, "pagescan.dev.yaml", "store:\n  url: http://localhost:54321\n")
	t.Setenv(EnvConfigEnv, "dev")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Store.URL != "http://localhost:54321" || cfg.Store.APIKey != "base" {
		t.Errorf("Expected overlay url with base api key, got %+v", cfg.Store)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := Load(path, false)
	if err != nil || cfg == nil {
		t.Errorf("Expected empty config for optional file, got %v", err)
	}
	if _, err := Load(path, true); err == nil {
		t.Errorf("Expected error for required file")
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown driver", cfg: Config{Camera: CameraConfig{Driver: "usb"}}},
		{name: "dir driver without dir", cfg: Config{Camera: CameraConfig{Driver: DriverDir}}},
		{name: "bad facing", cfg: Config{Camera: CameraConfig{Facing: "left"}}},
		{name: "bad poll interval", cfg: Config{Camera: CameraConfig{PollInterval: "soon"}}},
		{name: "bad encoding", cfg: Config{Capture: CaptureConfig{Encoding: "gif"}}},
		{name: "quality out of range", cfg: Config{Capture: CaptureConfig{Quality: 101}}},
		{name: "negative max width", cfg: Config{Capture: CaptureConfig{MaxWidth: -1}}},
		{name: "bad budget", cfg: Config{Compression: CompressionConfig{Budget: "huge"}}},
		{name: "bad store url", cfg: Config{Store: StoreConfig{URL: "ftp://files"}}},
		{name: "bad port", cfg: Config{Server: ServerConfig{Port: "http"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			tt.cfg.Identity.CredentialFile = "/tmp/cred.yaml"
			if err := tt.cfg.Finalize(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}
