package feed

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Descriptor names one logical feed. Descriptors are immutable once the
// registry has been built.
type Descriptor struct {
	Name            string
	URLTemplate     string
	DefaultInterval time.Duration
	// Schedule is an optional standard cron expression. When set it takes
	// precedence over DefaultInterval.
	Schedule string
	Params   map[string]string
}

var placeholder = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// URL expands the template. Values in params override the descriptor
// defaults. Every placeholder must resolve; query values are escaped.
func (d Descriptor) URL(params map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(d.URLTemplate, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := params[key]
		if !ok {
			v, ok = d.Params[key]
		}
		if !ok {
			missing = append(missing, key)
			return m
		}
		// {base} style parameters carry scheme and host; leave them intact.
		if key == "api" || strings.HasSuffix(key, "_url") {
			return strings.TrimRight(v, "/")
		}
		return url.QueryEscape(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("feed %s: missing url parameters %s", d.Name, strings.Join(missing, ","))
	}
	return out, nil
}

// Cron parses Schedule. It returns nil when the feed has no schedule.
func (d Descriptor) Cron() (cron.Schedule, error) {
	if strings.TrimSpace(d.Schedule) == "" {
		return nil, nil
	}
	sched, err := cron.ParseStandard(d.Schedule)
	if err != nil {
		return nil, fmt.Errorf("feed %s: parse schedule %q: %w", d.Name, d.Schedule, err)
	}
	return sched, nil
}

// Registry maps feed names to descriptors.
type Registry struct {
	feeds map[string]Descriptor
}

func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{feeds: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if err := r.put(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) put(d Descriptor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("feed name is required")
	}
	if strings.TrimSpace(d.URLTemplate) == "" {
		return fmt.Errorf("feed %s: url template is required", d.Name)
	}
	if d.DefaultInterval < 0 {
		return fmt.Errorf("feed %s: interval must not be negative", d.Name)
	}
	if _, err := d.Cron(); err != nil {
		return err
	}
	params := make(map[string]string, len(d.Params))
	for k, v := range d.Params {
		params[k] = v
	}
	d.Params = params
	r.feeds[d.Name] = d
	return nil
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.feeds[name]
	return d, ok
}

// All returns descriptors sorted by name.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.feeds))
	for _, d := range r.feeds {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type fileEntry struct {
	Name     string            `yaml:"name"`
	URL      string            `yaml:"url"`
	Interval string            `yaml:"interval"`
	Schedule string            `yaml:"schedule"`
	Params   map[string]string `yaml:"params"`
	Disabled bool              `yaml:"disabled"`
}

type fileConfig struct {
	Feeds []fileEntry `yaml:"feeds"`
}

// Overlay merges the YAML feed file at path into r. Entries replace fields
// of an existing feed with the same name, or add a new feed. A missing file
// is not an error.
func (r *Registry) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read feeds file: %w", err)
	}
	return r.overlayBytes(data)
}

func (r *Registry) overlayBytes(data []byte) error {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse feeds file: %w", err)
	}
	for _, e := range cfg.Feeds {
		name := strings.TrimSpace(e.Name)
		if e.Disabled {
			delete(r.feeds, name)
			continue
		}
		d, ok := r.feeds[name]
		if !ok {
			d = Descriptor{Name: name}
		}
		if e.URL != "" {
			d.URLTemplate = e.URL
		}
		if e.Interval != "" {
			iv, err := time.ParseDuration(e.Interval)
			if err != nil {
				return fmt.Errorf("feed %s: parse interval: %w", name, err)
			}
			d.DefaultInterval = iv
		}
		if e.Schedule != "" {
			d.Schedule = e.Schedule
		}
		if len(e.Params) > 0 {
			merged := make(map[string]string, len(d.Params)+len(e.Params))
			for k, v := range d.Params {
				merged[k] = v
			}
			for k, v := range e.Params {
				merged[k] = v
			}
			d.Params = merged
		}
		if err := r.put(d); err != nil {
			return err
		}
	}
	return nil
}
