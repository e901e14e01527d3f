// Package analysis implements the HTTP client for the external analysis collaborator.
package analysis

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultMaxBatch applies to providers that declare no batch limit.
const DefaultMaxBatch = 10

// Provider describes one analysis provider.
type Provider struct {
	Name     string `toml:"name"`
	Model    string `toml:"model"`
	Endpoint string `toml:"endpoint"`
	MaxBatch int    `toml:"max_batch"`
}

// Catalog is the set of known providers keyed by lowercase name.
type Catalog struct {
	providers map[string]Provider
}

type catalogFile struct {
	Providers []Provider `toml:"providers"`
}

// DefaultCatalog returns the built-in providers. Their endpoints fall back to
// the client's configured endpoint.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog([]Provider{
		{Name: "google", Model: "gemini-2.0-flash", MaxBatch: 10},
		{Name: "openai", Model: "gpt-4o-mini", MaxBatch: 10},
		{Name: "anthropic", Model: "claude-3-5-haiku", MaxBatch: 5},
	})
	return c
}

// NewCatalog builds a catalog. Names are case-insensitive and must be unique.
func NewCatalog(providers []Provider) (*Catalog, error) {
	c := &Catalog{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, errors.New("provider name is required")
		}
		if _, dup := c.providers[name]; dup {
			return nil, fmt.Errorf("duplicate provider %q", name)
		}
		p.Name = name
		if p.MaxBatch <= 0 {
			p.MaxBatch = DefaultMaxBatch
		}
		c.providers[name] = p
	}
	return c, nil
}

// LoadCatalog reads a TOML provider catalog:
//
//	[[providers]]
//	name = "google"
//	model = "gemini-2.0-flash"
//	endpoint = "https://analysis.internal/v1/google"
//	max_batch = 10
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a TOML provider catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse provider catalog: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, errors.New("provider catalog declares no providers")
	}
	return NewCatalog(file.Providers)
}

// Lookup returns the provider registered under name.
func (c *Catalog) Lookup(name string) (Provider, bool) {
	if c == nil {
		return Provider{}, false
	}
	p, ok := c.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns the registered provider names, sorted.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
