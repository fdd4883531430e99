package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names understood by Load.
const (
	EnvAPIKey             = "LANGCHAT_API_KEY"
	EnvBaseURL            = "LANGCHAT_BASE_URL"
	EnvModelName          = "LANGCHAT_MODEL_NAME"
	EnvEmbeddingModelName = "LANGCHAT_EMBEDDING_MODEL_NAME"
	EnvTemperature        = "LANGCHAT_TEMPERATURE"
	EnvMaxTokens          = "LANGCHAT_MAX_TOKENS"
	EnvDebug              = "LANGCHAT_DEBUG"
)

// dotEnvFiles are read in order; later files override earlier ones.
var dotEnvFiles = []string{".env", ".env.local"}

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	envDir   string
	lookup   func(string) (string, bool)
	optional bool
}

// WithEnvDir sets the directory searched for .env files. Defaults to the
// working directory.
func WithEnvDir(dir string) Option {
	return func(o *loadOptions) { o.envDir = dir }
}

// WithLookupEnv replaces os.LookupEnv as the source of process environment values.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(o *loadOptions) { o.lookup = fn }
}

// WithOptionalFile makes a missing config file equivalent to an empty one.
func WithOptionalFile() Option {
	return func(o *loadOptions) { o.optional = true }
}

// readDotEnv returns the values of each dotenv file in dir that exists,
// highest priority (last loaded) first.
func readDotEnv(dir string) ([]map[string]string, error) {
	var sources []map[string]string
	for _, name := range dotEnvFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		vals, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		sources = append([]map[string]string{vals}, sources...)
	}
	return sources, nil
}

// applyEnv overlays environment values onto cfg. Each key is looked up in
// the process environment, then in the dotenv sources in order. A value
// that does not parse is reported in cfg.Warnings and the next source is
// tried; when none parses the YAML or default value stays.
func applyEnv(cfg *Config, dotenv []map[string]string, lookup func(string) (string, bool)) {
	values := func(key string) []string {
		var out []string
		if v, ok := lookup(key); ok && v != "" {
			out = append(out, v)
		}
		for _, src := range dotenv {
			if v := src[key]; v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	setString := func(key string, dst *string) {
		if vs := values(key); len(vs) > 0 {
			*dst = vs[0]
		}
	}

	setString(EnvAPIKey, &cfg.Model.APIKey)
	setString(EnvBaseURL, &cfg.Model.BaseURL)
	setString(EnvModelName, &cfg.Model.ModelName)
	setString(EnvEmbeddingModelName, &cfg.Embedding.ModelName)
	if f, ok := firstValid(cfg, EnvTemperature, "a number", values(EnvTemperature), func(v string) (float64, error) {
		return strconv.ParseFloat(v, 64)
	}); ok {
		cfg.Model.Temperature = &f
	}
	if n, ok := firstValid(cfg, EnvMaxTokens, "an integer", values(EnvMaxTokens), strconv.Atoi); ok {
		cfg.Model.MaxTokens = n
	}
	if b, ok := firstValid(cfg, EnvDebug, "a boolean", values(EnvDebug), strconv.ParseBool); ok {
		cfg.Debug = b
	}
}

// firstValid returns the first of vals that parse accepts, adding a warning
// to cfg for every value it rejects on the way.
func firstValid[T any](cfg *Config, key, want string, vals []string, parse func(string) (T, error)) (T, bool) {
	for _, v := range vals {
		x, err := parse(v)
		if err == nil {
			return x, true
		}
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring %s=%q: not %s", key, v, want))
	}
	var zero T
	return zero, false
}

// Mask hides the value of secret-looking keys, those with a KEY, SECRET or
// TOKEN name segment: the first 8 characters are kept, the rest replaced by "***".
func Mask(key, value string) string {
	if !isSecretKey(key) {
		return value
	}
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:8] + "***"
}

func isSecretKey(key string) bool {
	for _, seg := range strings.FieldsFunc(strings.ToUpper(key), func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	}) {
		switch seg {
		case "KEY", "APIKEY", "SECRET", "TOKEN":
			return true
		}
	}
	return false
}

// Summary returns the environment-overridable settings as sorted
// "KEY=value" lines with secrets masked.
func (c *Config) Summary() []string {
	vals := map[string]string{
		EnvAPIKey:             c.Model.APIKey,
		EnvBaseURL:            c.Model.BaseURL,
		EnvModelName:          c.Model.ModelName,
		EnvEmbeddingModelName: c.Embedding.ModelName,
		EnvTemperature:        strconv.FormatFloat(c.Model.TemperatureOrDefault(), 'g', -1, 64),
		EnvMaxTokens:          strconv.Itoa(c.Model.MaxTokens),
	}
	out := make([]string, 0, len(vals))
	for k, v := range vals {
		out = append(out, k+"="+Mask(k, v))
	}
	sort.Strings(out)
	return out
}
