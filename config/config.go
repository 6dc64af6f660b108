// Package config builds the immutable configuration record shared by every
// snippet controller.
//
// A Config starts from Default, is overlaid with an optional YAML file, then
// with SNIPPETRUN_* variables from the environment or .env files, and is
// validated once. Core packages never look configuration up on their own;
// they receive the pieces they need through the accessor methods.
package config

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/snippetrun/marker"
	"github.com/jonwraymond/snippetrun/remote"
)

// ErrConfiguration indicates an invalid or unreadable configuration.
var ErrConfiguration = errors.New("configuration error")

// Default values.
const (
	DefaultLanguage    = "c"
	DefaultConcurrency = 4
	DefaultTimeoutMs   = 10000
)

// Environment variables read by Load.
const (
	EnvEndpoint    = "SNIPPETRUN_ENDPOINT"
	EnvTimeout     = "SNIPPETRUN_TIMEOUT"
	EnvToken       = "SNIPPETRUN_TOKEN"
	EnvLanguage    = "SNIPPETRUN_LANGUAGE"
	EnvConcurrency = "SNIPPETRUN_CONCURRENCY"
)

// Config is the resolved configuration.
type Config struct {
	APIServer  APIServer  `yaml:"apiServer"`
	CodeMarker CodeMarker `yaml:"codeMarker"`
	Result     Result     `yaml:"result"`

	// Language is the fence language of runnable blocks.
	// Default: "c"
	Language string `yaml:"language"`

	// Concurrency bounds how many snippets of a page run at once.
	// Zero means unlimited.
	// Default: 4
	Concurrency int `yaml:"concurrency"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
}

// APIServer configures the remote executor.
type APIServer struct {
	// URL is the executor endpoint.
	URL string `yaml:"url"`

	// Headers are sent with every run request.
	Headers map[string]string `yaml:"headers"`

	// TimeoutMs is the per-run timeout in milliseconds.
	TimeoutMs int `yaml:"timeout"`
}

// CodeMarker configures highlight markers.
type CodeMarker struct {
	StartMarker string `yaml:"startMarker"`
	EndMarker   string `yaml:"endMarker"`

	// HideMarkers hides marker lines in expanded snippets.
	// Default: true
	HideMarkers *bool `yaml:"hideMarkers"`
}

// Result configures result rendering.
type Result struct {
	// ShowExitCode adds an exit code line under failed results.
	// Default: true
	ShowExitCode *bool `yaml:"showExitCode"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		APIServer: APIServer{
			URL:       remote.DefaultEndpoint,
			Headers:   map[string]string{"Content-Type": "application/json"},
			TimeoutMs: DefaultTimeoutMs,
		},
		CodeMarker: CodeMarker{
			StartMarker: marker.DefaultStartToken,
			EndMarker:   marker.DefaultEndToken,
		},
		Language:    DefaultLanguage,
		Concurrency: DefaultConcurrency,
	}
}

// Load resolves the configuration from the YAML file at path (optional),
// the given .env files (missing files are skipped) and the process
// environment. Process variables win over .env values, which win over the
// file.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()
	defaultHeaders := cfg.APIServer.Headers
	cfg.APIServer.Headers = nil

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %w", ErrConfiguration, path, err)
		}
	}
	cfg.APIServer.Headers = mergeHeaders(defaultHeaders, cfg.APIServer.Headers)

	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeHeaders canonicalizes header keys and lets overlay replace base.
// Overlay keys that collide after canonicalization are applied in sorted
// order so the result does not depend on map iteration.
func mergeHeaders(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for _, k := range slices.Sorted(maps.Keys(overlay)) {
		out[http.CanonicalHeaderKey(k)] = overlay[k]
	}
	return out
}

func readEnvFiles(files []string) (map[string]string, error) {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return map[string]string{}, nil
	}
	vars, err := godotenv.Read(existing...)
	if err != nil {
		return nil, fmt.Errorf("%w: read env files: %w", ErrConfiguration, err)
	}
	return vars, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvEndpoint); ok && v != "" {
		c.APIServer.URL = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		ms, err := parseTimeoutMs(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfiguration, EnvTimeout, err)
		}
		c.APIServer.TimeoutMs = ms
	}
	if v, ok := lookup(EnvToken); ok && v != "" {
		headers := maps.Clone(c.APIServer.Headers)
		if headers == nil {
			headers = map[string]string{}
		}
		headers["Authorization"] = "Bearer " + v
		c.APIServer.Headers = headers
	}
	if v, ok := lookup(EnvLanguage); ok && v != "" {
		c.Language = v
	}
	if v, ok := lookup(EnvConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConfiguration, EnvConcurrency, err)
		}
		c.Concurrency = n
	}
	return nil
}

// parseTimeoutMs accepts a millisecond count or a Go duration string.
func parseTimeoutMs(v string) (int, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return ms, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return int(d / time.Millisecond), nil
}

// Validate checks the configuration.
// Returns ErrConfiguration listing every problem found.
func (c Config) Validate() error {
	var problems []string

	if u, err := url.Parse(c.APIServer.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("apiServer.url %q is not an http(s) URL", c.APIServer.URL))
	}
	if c.APIServer.TimeoutMs <= 0 {
		problems = append(problems, "apiServer.timeout must be positive")
	}
	if c.CodeMarker.StartMarker == "" || c.CodeMarker.EndMarker == "" {
		problems = append(problems, "codeMarker markers must not be empty")
	} else if c.CodeMarker.StartMarker == c.CodeMarker.EndMarker {
		problems = append(problems, "codeMarker start and end markers must differ")
	}
	if strings.TrimSpace(c.Language) == "" {
		problems = append(problems, "language must not be empty")
	}
	if c.Concurrency < 0 {
		problems = append(problems, "concurrency must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// Timeout returns the per-run timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.APIServer.TimeoutMs) * time.Millisecond
}

// Headers returns a copy of the request headers.
func (c Config) Headers() map[string]string {
	return maps.Clone(c.APIServer.Headers)
}

// HideMarkers reports whether expanded snippets hide marker lines.
func (c Config) HideMarkers() bool {
	return c.CodeMarker.HideMarkers == nil || *c.CodeMarker.HideMarkers
}

// ShowExitCode reports whether failed results show their exit code.
func (c Config) ShowExitCode() bool {
	return c.Result.ShowExitCode == nil || *c.Result.ShowExitCode
}

// Tokens returns the marker tokens.
func (c Config) Tokens() marker.Tokens {
	return marker.Tokens{Start: c.CodeMarker.StartMarker, End: c.CodeMarker.EndMarker}
}

// Remote returns the executor client configuration.
func (c Config) Remote(logger remote.Logger) remote.Config {
	return remote.Config{
		Endpoint: c.APIServer.URL,
		Headers:  c.Headers(),
		Timeout:  c.Timeout(),
		Logger:   logger,
	}
}
