package executor

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultCatalog []byte

// RetryPolicy bounds the attempts of one external call.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy applies to calls whose catalog entry has no retry block.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 1, Backoff: 500 * time.Millisecond}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// RetrySpec is the catalog form of a RetryPolicy.
type RetrySpec struct {
	Max       *int `yaml:"max" json:"max"`
	BackoffMS *int `yaml:"backoff_ms" json:"backoff_ms"`
}

// CallSpec describes one named external call.
type CallSpec struct {
	Prompt  string         `yaml:"prompt" json:"prompt"`
	Retry   *RetrySpec     `yaml:"retry" json:"retry"`
	Returns map[string]any `yaml:"returns" json:"returns"`
}

// Policy returns the effective retry policy of the call.
func (s CallSpec) Policy() RetryPolicy {
	p := DefaultRetryPolicy
	if s.Retry != nil {
		if s.Retry.Max != nil {
			p.MaxAttempts = *s.Retry.Max
		}
		if s.Retry.BackoffMS != nil {
			p.Backoff = time.Duration(*s.Retry.BackoffMS) * time.Millisecond
		}
	}
	return p.normalized()
}

// Catalog maps call names to their specs.
type Catalog map[string]CallSpec

// Names returns the call names in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseCatalog decodes a YAML (or JSON) catalog document.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse prompt catalog: %w", err)
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("prompt catalog is empty")
	}
	return c, nil
}

// LoadCatalog reads the catalog at path, or the built-in one when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt catalog: %w", err)
	}
	return ParseCatalog(data)
}

// Render replaces each {{key}} in tmpl with fmt.Sprint(vars[key]). Keys are
// applied in sorted order, one at a time, so a substituted value that itself
// contains a placeholder may be expanded by a later key. Placeholders with no
// matching key are left as they are.
func Render(tmpl string, vars map[string]any) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := tmpl
	for _, k := range keys {
		out = strings.ReplaceAll(out, "{{"+k+"}}", fmt.Sprint(vars[k]))
	}
	return out
}
