package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ksl-notify/models"
)

// searchSpec is one saved search in the --searches YAML file. Unlike the
// command-line filter flags, which apply to every query alike, each entry
// here carries its own filters.
type searchSpec struct {
	Keyword     string `yaml:"keyword"`
	Category    string `yaml:"category"`
	SubCategory string `yaml:"subcategory"`
	MinPrice    int    `yaml:"min_price"`
	MaxPrice    int    `yaml:"max_price"`
	Zip         string `yaml:"zip"`
	City        string `yaml:"city"`
	State       string `yaml:"state"`
	Miles       int    `yaml:"miles"`
	PerPage     int    `yaml:"per_page"`
	OldestFirst bool   `yaml:"oldest_first"`
	IncludeSold bool   `yaml:"include_sold"`
}

type searchesFile struct {
	Searches []searchSpec `yaml:"searches"`
}

// loadSearches reads a saved-searches YAML file into query specifications.
func loadSearches(path string) ([]models.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read searches file: %w", err)
	}

	var sf searchesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("config: parse searches file %q: %w", path, err)
	}

	queries := make([]models.Query, 0, len(sf.Searches))
	for i, s := range sf.Searches {
		if s.Keyword == "" {
			return nil, fmt.Errorf("config: searches file %q: entry %d has no keyword", path, i)
		}
		queries = append(queries, models.Query{
			Keyword:         s.Keyword,
			Category:        s.Category,
			SubCategory:     s.SubCategory,
			MinPrice:        s.MinPrice,
			MaxPrice:        s.MaxPrice,
			Zip:             s.Zip,
			City:            s.City,
			State:           s.State,
			Miles:           s.Miles,
			PerPage:         s.PerPage,
			SortOldestFirst: s.OldestFirst,
			IncludeSold:     s.IncludeSold,
		})
	}
	return queries, nil
}
