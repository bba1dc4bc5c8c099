package tenant

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Descriptor identifies a tenant and the client application used to sign in to it.
type Descriptor struct {
	Name     string `yaml:"name" json:"name" toml:"name" validate:"required"`
	Tenant   string `yaml:"tenant" json:"tenant" toml:"tenant" validate:"required"`
	ClientID string `yaml:"clientId" json:"clientId" toml:"clientId" validate:"required,uuid"`
}

// DisplayName is the name shown to users, falling back to the tenant identifier.
func (d Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Tenant
}

type catalogFile struct {
	Tenants []Descriptor `yaml:"tenants" json:"tenants" toml:"tenants"`
}

// Catalog is the read-only list of known tenants.
type Catalog struct {
	tenants []Descriptor
}

var validate = validator.New()

// LoadCatalog reads descriptors from a YAML, JSON or TOML file chosen by extension.
// JSON is parsed by the YAML decoder.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}
	var file catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), &file); err != nil {
			return nil, fmt.Errorf("parse tenants file %s: %w", path, err)
		}
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse tenants file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported tenants file extension %q", filepath.Ext(path))
	}
	return NewCatalog(file.Tenants)
}

func NewCatalog(descriptors []Descriptor) (*Catalog, error) {
	seen := make(map[string]struct{}, len(descriptors))
	for i, d := range descriptors {
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("tenant #%d (%s): %w", i+1, d.DisplayName(), err)
		}
		key := strings.ToLower(d.DisplayName())
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("tenant %q is listed twice", d.DisplayName())
		}
		seen[key] = struct{}{}
	}
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return &Catalog{tenants: out}, nil
}

func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, len(c.tenants))
	copy(out, c.tenants)
	return out
}

// Find looks a tenant up by name or tenant identifier, case-insensitively.
func (c *Catalog) Find(ref string) (Descriptor, bool) {
	ref = strings.TrimSpace(ref)
	for _, d := range c.tenants {
		if strings.EqualFold(d.Name, ref) || strings.EqualFold(d.Tenant, ref) {
			return d, true
		}
	}
	return Descriptor{}, false
}
