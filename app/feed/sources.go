package feed

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sources is the optional YAML file listing feeds and keywords to register.
type Sources struct {
	Feeds    []SourceFeed    `yaml:"feeds"`
	Keywords []SourceKeyword `yaml:"keywords"`
}

type SourceFeed struct {
	Region string `yaml:"region"`
	URL    string `yaml:"url"`
	Active *bool  `yaml:"active"`
}

type SourceKeyword struct {
	En     string `yaml:"en"`
	Ko     string `yaml:"ko"`
	Active *bool  `yaml:"active"`
}

func (f SourceFeed) IsActive() bool {
	return f.Active == nil || *f.Active
}

func (k SourceKeyword) IsActive() bool {
	return k.Active == nil || *k.Active
}

func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var sources Sources
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	if err := validateSources(&sources); err != nil {
		return nil, fmt.Errorf("invalid sources file %s: %w", path, err)
	}

	return &sources, nil
}

func validateSources(sources *Sources) error {
	for i := range sources.Feeds {
		f := &sources.Feeds[i]
		f.URL = strings.TrimSpace(f.URL)
		f.Region = strings.TrimSpace(f.Region)

		if f.URL == "" {
			return fmt.Errorf("feed %d: url is required", i)
		}
		u, err := url.Parse(f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("feed %d: invalid url %q", i, f.URL)
		}
		if f.Region == "" {
			return fmt.Errorf("feed %d: region is required", i)
		}
	}

	for i := range sources.Keywords {
		k := &sources.Keywords[i]
		k.En = strings.TrimSpace(k.En)
		k.Ko = strings.TrimSpace(k.Ko)

		if k.En == "" && k.Ko == "" {
			return fmt.Errorf("keyword %d: en or ko name is required", i)
		}
	}

	return nil
}
