package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"ksl-notify/models"
)

func TestLoadPositionalQueries(t *testing.T) {
	cfg, err := Load([]string{"-t", "5", "-m", "50", "-M", "200", "lawn mower", "bike"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.IntervalMinutes != 5 {
		t.Errorf("IntervalMinutes = %d; want 5", cfg.IntervalMinutes)
	}

	queries := cfg.Queries()
	if len(queries) != 2 {
		t.Fatalf("got %d queries; want 2", len(queries))
	}
	if queries[0].Keyword != "lawn mower" || queries[1].Keyword != "bike" {
		t.Errorf("keywords = %v; want [lawn mower, bike]", cfg.QueryKeys())
	}
	// The shared filter flags apply to every positional query.
	for _, q := range queries {
		if q.MinPrice != 50 || q.MaxPrice != 200 {
			t.Errorf("query %q filters = min %d max %d; want 50/200", q.Keyword, q.MinPrice, q.MaxPrice)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"mower"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.IntervalMinutes != 10 {
		t.Errorf("IntervalMinutes = %d; want default 10", cfg.IntervalMinutes)
	}
	if cfg.EmailExceptions != 5 {
		t.Errorf("EmailExceptions = %d; want default 5", cfg.EmailExceptions)
	}
	if cfg.Engine != "http" {
		t.Errorf("Engine = %q; want default http", cfg.Engine)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want default info", cfg.LogLevel)
	}
}

func TestLoadEnvQueries(t *testing.T) {
	t.Setenv("KSL_QUERY", "snowblower")
	t.Setenv("KSL_QUERY2", "ski rack")

	cfg, err := Load([]string{"ignored positional"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	keys := cfg.QueryKeys()
	if len(keys) != 2 {
		t.Fatalf("got %d queries; want 2 from env", len(keys))
	}
	found := map[string]bool{}
	for _, k := range keys {
		found[k] = true
	}
	if !found["snowblower"] || !found["ski rack"] {
		t.Errorf("env queries = %v; want snowblower and ski rack", keys)
	}
}

func TestLoadSearchesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searches.yaml")
	yaml := `searches:
  - keyword: lawn mower
    min_price: 50
    max_price: 300
    city: Provo
  - keyword: snowblower
    category: Tools
    oldest_first: true
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"--searches", path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []models.Query{
		{Keyword: "lawn mower", MinPrice: 50, MaxPrice: 300, City: "Provo"},
		{Keyword: "snowblower", Category: "Tools", SortOldestFirst: true},
	}
	if got := cfg.Queries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Queries() = %+v; want %+v", got, want)
	}
}

func TestLoadSearchesFileRejectsMissingKeyword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searches.yaml")
	if err := os.WriteFile(path, []byte("searches:\n  - city: Provo\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load([]string{"--searches", path}); err == nil {
		t.Error("Load accepted a searches entry without a keyword")
	}
}

func TestValidate(t *testing.T) {
	valid := &Config{
		Email:                 "me@gmail.com",
		Password:              "hunter2",
		SMTPServer:            "smtp.gmail.com:587",
		IntervalMinutes:       10,
		EmailExceptions:       5,
		LogLevel:              "info",
		Engine:                "http",
		RequestTimeoutSeconds: 30,
		queries:               []models.Query{{Keyword: "mower"}},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate rejected a valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad email", func(c *Config) { c.Email = "not-an-email" }},
		{"missing password", func(c *Config) { c.Password = "" }},
		{"server without port", func(c *Config) { c.SMTPServer = "smtp.gmail.com" }},
		{"zero interval", func(c *Config) { c.IntervalMinutes = 0 }},
		{"bad engine", func(c *Config) { c.Engine = "carrier-pigeon" }},
		{"no queries", func(c *Config) { c.queries = nil }},
	}

	for _, tt := range tests {
		cfg := *valid
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate accepted config with %s", tt.name)
		}
	}
}
