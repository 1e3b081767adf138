// Package config loads and holds the inference pipeline's run
// configuration. Run settings are layered: defaults → CLI flags (flags
// win), following the teacher's defaults()/loadFile()/loadEnv()
// layering with loadFlags() standing in for loadEnv() since this is a
// one-shot CLI rather than a long-running daemon. The optional JSON
// site-profile registry-override file named by --registry carries site
// entries, not run settings, and is read separately by
// LoadRegistryOverrides.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"

	"qris/internal/siteprofile"
)

// Config holds one run's resolved settings (spec §6's CLI surface).
type Config struct {
	Website   string `json:"website"`
	Chinese   bool   `json:"chinese"`
	QuerySet  string `json:"querySet"`
	Bigrams   string `json:"bigrams"`
	Trident   bool   `json:"trident"`
	TopK      int    `json:"topK"`
	Registry  string `json:"registry"`
	ModelsDir string `json:"modelsDir"`
	Verbose   bool   `json:"verbose"`
	LogLevel  string `json:"logLevel"`

	CacheFile string `json:"cacheFile"`

	CaptureFile string `json:"-"`
}

// ErrMissingCaptureFile is returned when the positional capture-file
// argument is absent.
var ErrMissingCaptureFile = errors.New("exactly one capture file argument is required")

// Load parses args (typically os.Args[1:]) into a Config, applying
// defaults first.
func Load(args []string) (*Config, error) {
	cfg := defaults()
	if err := loadFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		TopK:      10,
		ModelsDir: "models",
		CacheFile: "queryindex-cache.db",
		LogLevel:  "info",
	}
}

func loadFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("qris", flag.ContinueOnError)
	fs.StringVar(&cfg.Website, "website", cfg.Website, "site name, or empty to auto-detect from the capture's TLS ClientHello")
	fs.BoolVar(&cfg.Chinese, "chinese", cfg.Chinese, "treat the capture as a Chinese-IME session")
	fs.StringVar(&cfg.QuerySet, "queryset", cfg.QuerySet, "path to the query dictionary file")
	fs.StringVar(&cfg.Bigrams, "bigrams", cfg.Bigrams, "path to the keystroke-rhythm bigram table")
	fs.BoolVar(&cfg.Trident, "trident", cfg.Trident, "model IE/Edge (Trident) URL handling: with --chinese, apostrophes are treated as not percent-encoded")
	fs.IntVar(&cfg.TopK, "topk", cfg.TopK, "number of ranked candidates to print per candidate trace (0 keeps all)")
	fs.StringVar(&cfg.Registry, "registry", cfg.Registry, "path to a JSON file overriding/extending the built-in site-profile registry")
	fs.StringVar(&cfg.ModelsDir, "models-dir", cfg.ModelsDir, "directory holding the persisted QueryIndex cache")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "print a metrics snapshot after ranking")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "minimum log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return ErrMissingCaptureFile
	}
	cfg.CaptureFile = fs.Arg(0)
	return nil
}

// LoadRegistryOverrides reads a --registry JSON file (a list of
// siteprofile.Entry) for the caller to merge over the built-in
// registry via Registry.Add. Returns (nil, nil) when path is empty.
func LoadRegistryOverrides(path string) ([]siteprofile.Entry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []siteprofile.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	log.Printf("[CONFIG] loaded %d registry override(s) from %s", len(entries), path)
	return entries, nil
}
