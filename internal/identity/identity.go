// Package identity defines the credential collaborator used for uploads and
// two simple providers: a YAML credential file and a static token.
package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential is an opaque bearer token. A zero ExpiresAt never expires.
type Credential struct {
	Token     string    `yaml:"access_token"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
}

// Valid reports whether the credential can be used at the given time
func (c Credential) Valid(now time.Time) bool {
	if strings.TrimSpace(c.Token) == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

// Provider supplies the current user's credential
type Provider interface {
	// CurrentCredential returns nil when there is no session
	CurrentCredential(ctx context.Context) (*Credential, error)
	SignOut(ctx context.Context) error
}

// FileProvider keeps the credential in a YAML file
type FileProvider struct {
	Path string
}

// NewFileProvider creates a provider backed by path
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

func (p *FileProvider) CurrentCredential(ctx context.Context) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var cred Credential
	if err := yaml.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if cred.Token == "" {
		return nil, nil
	}
	return &cred, nil
}

// Store writes a credential issued by the identity provider
func (p *FileProvider) Store(cred Credential) error {
	data, err := yaml.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	if err := os.WriteFile(p.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

// SignOut removes the credential file. Signing out twice is not an error.
func (p *FileProvider) SignOut(ctx context.Context) error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

// StaticProvider serves a fixed token, typically read from the environment
type StaticProvider struct {
	token string
}

func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token}
}

func (p *StaticProvider) CurrentCredential(ctx context.Context) (*Credential, error) {
	if p.token == "" {
		return nil, nil
	}
	return &Credential{Token: p.token}, nil
}

func (p *StaticProvider) SignOut(ctx context.Context) error {
	p.token = ""
	return nil
}

// Chain asks each provider in turn and returns the first valid credential.
// When every credential found is expired, the first of them is returned so the
// caller can report the expiry.
type Chain []Provider

func (c Chain) CurrentCredential(ctx context.Context) (*Credential, error) {
	now := time.Now()
	var errs []error
	var expired *Credential
	for _, p := range c {
		cred, err := p.CurrentCredential(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if cred == nil {
			continue
		}
		if cred.Valid(now) {
			return cred, nil
		}
		if expired == nil {
			expired = cred
		}
	}
	if expired != nil {
		return expired, nil
	}
	return nil, errors.Join(errs...)
}

func (c Chain) SignOut(ctx context.Context) error {
	var errs []error
	for _, p := range c {
		if err := p.SignOut(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
