package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/docker/go-units"

	"github.com/lehigh-university-libraries/pagescan/internal/compress"
	"github.com/lehigh-university-libraries/pagescan/internal/identity"
	"github.com/lehigh-university-libraries/pagescan/internal/store"
)

const (
	EnvCompressionBudget  = "PAGESCAN_COMPRESSION_BUDGET"
	EnvCompressionQuality = "PAGESCAN_COMPRESSION_QUALITY"

	EnvStoreURL          = "PAGESCAN_STORE_URL"
	EnvStoreScanPath     = "PAGESCAN_STORE_SCAN_PATH"
	EnvStoreArtifactPath = "PAGESCAN_STORE_ARTIFACT_PATH"
	EnvStoreAPIKey       = "PAGESCAN_STORE_API_KEY"

	EnvIdentityCredentialFile = "PAGESCAN_CREDENTIAL_FILE"

	EnvServerPort = "PAGESCAN_PORT"
)

// CompressionConfig is the per-page upload budget
type CompressionConfig struct {
	// Budget is a human size such as "500KB"
	Budget  string `yaml:"budget" toml:"budget"`
	Quality int    `yaml:"quality" toml:"quality"`

	budgetVal int64
}

func (c *CompressionConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

func (c *CompressionConfig) Merge(overlay *CompressionConfig) {
	if overlay.Budget != "" {
		c.Budget = overlay.Budget
	}
	if overlay.Quality != 0 {
		c.Quality = overlay.Quality
	}
}

func (c *CompressionConfig) loadDefaults() {
	if c.Budget == "" {
		c.Budget = units.HumanSize(float64(compress.DefaultBudget))
	}
	if c.Quality == 0 {
		c.Quality = compress.DefaultQuality
	}
}

func (c *CompressionConfig) loadEnv() error {
	if v := os.Getenv(EnvCompressionBudget); v != "" {
		c.Budget = v
	}
	if v := os.Getenv(EnvCompressionQuality); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCompressionQuality, err)
		}
		c.Quality = n
	}
	return nil
}

func (c *CompressionConfig) validate() error {
	budget, err := compress.ParseBudget(c.Budget)
	if err != nil {
		return err
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	}
	c.budgetVal = budget
	return nil
}

func (c *CompressionConfig) BudgetBytes() int64 {
	return c.budgetVal
}

func (c *CompressionConfig) Policy() compress.Policy {
	return compress.Policy{Budget: c.budgetVal, Quality: c.Quality}
}

// StoreConfig locates the document store
type StoreConfig struct {
	URL          string `yaml:"url" toml:"url"`
	ScanPath     string `yaml:"scan_path" toml:"scan_path"`
	ArtifactPath string `yaml:"artifact_path" toml:"artifact_path"`
	APIKey       string `yaml:"api_key" toml:"api_key"`
}

func (c *StoreConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *StoreConfig) Merge(overlay *StoreConfig) {
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.ScanPath != "" {
		c.ScanPath = overlay.ScanPath
	}
	if overlay.ArtifactPath != "" {
		c.ArtifactPath = overlay.ArtifactPath
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
}

func (c *StoreConfig) loadDefaults() {
	if c.ScanPath == "" {
		c.ScanPath = store.DefaultScanPath
	}
	if c.ArtifactPath == "" {
		c.ArtifactPath = store.DefaultArtifactPath
	}
}

func (c *StoreConfig) loadEnv() {
	if v := os.Getenv(EnvStoreURL); v != "" {
		c.URL = v
	}
	if v := os.Getenv(EnvStoreScanPath); v != "" {
		c.ScanPath = v
	}
	if v := os.Getenv(EnvStoreArtifactPath); v != "" {
		c.ArtifactPath = v
	}
	if v := os.Getenv(EnvStoreAPIKey); v != "" {
		c.APIKey = v
	}
}

// validate allows an empty URL; commands that talk to the store call Client
func (c *StoreConfig) validate() error {
	if c.URL == "" {
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http or https, got %q", c.URL)
	}
	return nil
}

// Client builds the document store client
func (c *StoreConfig) Client() (*store.Client, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("store url is not configured (set %s)", EnvStoreURL)
	}
	client := store.NewClient(c.URL, c.APIKey)
	client.ScanPath = c.ScanPath
	client.ArtifactPath = c.ArtifactPath
	return client, nil
}

// IdentityConfig locates the user's credential
type IdentityConfig struct {
	CredentialFile string `yaml:"credential_file" toml:"credential_file"`
	// TokenEnv names an environment variable holding a bearer token
	TokenEnv string `yaml:"token_env" toml:"token_env"`
}

func (c *IdentityConfig) Finalize() error {
	if err := c.loadDefaults(); err != nil {
		return err
	}
	c.loadEnv()
	return nil
}

func (c *IdentityConfig) Merge(overlay *IdentityConfig) {
	if overlay.CredentialFile != "" {
		c.CredentialFile = overlay.CredentialFile
	}
	if overlay.TokenEnv != "" {
		c.TokenEnv = overlay.TokenEnv
	}
}

func (c *IdentityConfig) loadDefaults() error {
	if c.CredentialFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("credential_file required: %w", err)
		}
		c.CredentialFile = filepath.Join(dir, "pagescan", "credential.yaml")
	}
	if c.TokenEnv == "" {
		c.TokenEnv = "PAGESCAN_TOKEN"
	}
	return nil
}

func (c *IdentityConfig) loadEnv() {
	if v := os.Getenv(EnvIdentityCredentialFile); v != "" {
		c.CredentialFile = v
	}
}

func (c *IdentityConfig) FileProvider() *identity.FileProvider {
	return identity.NewFileProvider(c.CredentialFile)
}

// Provider prefers a token from the environment over the credential file
func (c *IdentityConfig) Provider() identity.Provider {
	return identity.Chain{
		identity.NewStaticProvider(os.Getenv(c.TokenEnv)),
		c.FileProvider(),
	}
}

// ServerConfig is the local HTTP API
type ServerConfig struct {
	Port string `yaml:"port" toml:"port"`
}

func (c *ServerConfig) Finalize() error {
	if c.Port == "" {
		c.Port = "8888"
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		c.Port = v
	}
	n, err := strconv.Atoi(c.Port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid port: %q", c.Port)
	}
	return nil
}

func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Port != "" {
		c.Port = overlay.Port
	}
}
