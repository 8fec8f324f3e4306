// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/driveq/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete driveq configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	API     APIConfig     `toml:"api" json:"api" yaml:"api"`
	Chat    ChatConfig    `toml:"chat" json:"chat" yaml:"chat"`
	Upload  UploadConfig  `toml:"upload" json:"upload" yaml:"upload"`
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
	Watch   WatchConfig   `toml:"watch" json:"watch" yaml:"watch"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
}

// APIConfig locates the backend.
type APIConfig struct {
	// BaseURL is the backend root, without the /api suffix
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url" env:"DRIVEQ_API_URL"`
	// TimeoutSecs bounds each request; 0 disables the timeout
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs" env:"DRIVEQ_TIMEOUT"`
	// UserAgent overrides the default User-Agent header
	UserAgent string `toml:"user_agent" json:"user_agent" yaml:"user_agent" env:"DRIVEQ_USER_AGENT"`
}

// ChatConfig controls how questions are sent.
type ChatConfig struct {
	// SessionID pins the backend conversation; empty means a fresh one per run
	SessionID string `toml:"session_id" json:"session_id" yaml:"session_id" env:"DRIVEQ_SESSION_ID"`
	// UseDocuments asks the backend to answer from uploaded manuals
	UseDocuments bool `toml:"use_documents" json:"use_documents" yaml:"use_documents" env:"DRIVEQ_USE_DOCUMENTS"`
	// Stream uses the server-sent events endpoint
	Stream bool `toml:"stream" json:"stream" yaml:"stream" env:"DRIVEQ_STREAM"`
	// AutoSave writes the transcript to history as it changes
	AutoSave bool `toml:"autosave" json:"autosave" yaml:"autosave" env:"DRIVEQ_AUTOSAVE"`
}

// UploadConfig is the local validation policy.
type UploadConfig struct {
	MaxSizeMB int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb" env:"DRIVEQ_MAX_UPLOAD_MB"`
	AllowText bool `toml:"allow_text" json:"allow_text" yaml:"allow_text" env:"DRIVEQ_ALLOW_TEXT"`
}

// StorageConfig locates local history.
type StorageConfig struct {
	// DBPath is the SQLite file (empty = ~/.driveq/history.db)
	DBPath string `toml:"db_path" json:"db_path" yaml:"db_path" env:"DRIVEQ_DB_PATH"`
	// ExportDir is where /export writes when no path is given
	ExportDir string `toml:"export_dir" json:"export_dir" yaml:"export_dir" env:"DRIVEQ_EXPORT_DIR"`
}

// WatchConfig drives the folder auto-uploader.
type WatchConfig struct {
	Dir              string `toml:"dir" json:"dir" yaml:"dir" env:"DRIVEQ_WATCH_DIR"`
	DebounceMS       int    `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms" env:"DRIVEQ_WATCH_DEBOUNCE_MS"`
	UploadsPerMinute int    `toml:"uploads_per_minute" json:"uploads_per_minute" yaml:"uploads_per_minute" env:"DRIVEQ_WATCH_RATE"`
}

// LoggingConfig sets the log sink.
type LoggingConfig struct {
	// Level is debug, info, warn, error or off
	Level string `toml:"level" json:"level" yaml:"level" env:"DRIVEQ_LOG_LEVEL"`
	// File is the log path (empty = ~/.driveq/driveq.log, "stderr" = stderr)
	File string `toml:"file" json:"file" yaml:"file" env:"DRIVEQ_LOG_FILE"`
}

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	// Theme is auto, dark or light
	Theme          string `toml:"theme" json:"theme" yaml:"theme" env:"DRIVEQ_THEME"`
	Markdown       bool   `toml:"markdown" json:"markdown" yaml:"markdown" env:"DRIVEQ_MARKDOWN"`
	ShowTimestamps bool   `toml:"show_timestamps" json:"show_timestamps" yaml:"show_timestamps"`
	CompactMode    bool   `toml:"compact_mode" json:"compact_mode" yaml:"compact_mode"`
	NoColor        bool   `toml:"no_color" json:"no_color" yaml:"no_color"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultBaseURL is the hosted backend.
	DefaultBaseURL = "https://drivequery-backend.onrender.com"

	currentVersion = "1"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: currentVersion,
		API: APIConfig{
			BaseURL:     DefaultBaseURL,
			TimeoutSecs: 120,
		},
		Chat: ChatConfig{
			UseDocuments: true,
			Stream:       false,
			AutoSave:     true,
		},
		Upload: UploadConfig{
			MaxSizeMB: 10,
		},
		Watch: WatchConfig{
			DebounceMS:       500,
			UploadsPerMinute: 6,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme:          "auto",
			Markdown:       true,
			ShowTimestamps: true,
		},
	}
}

// Timeout is the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// MaxUploadBytes is the upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxSizeMB) * 1024 * 1024
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the driveq directory: $DRIVEQ_HOME, else ~/.driveq.
func Dir() (string, error) {
	if d := os.Getenv("DRIVEQ_HOME"); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".driveq"), nil
}

// fileNames are tried in order by Load.
var fileNames = []string{"config.toml", "config.yaml", "config.yml", "config.json"}

// Path returns the config file Load would read, or the TOML path when none
// exists yet.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	for _, name := range fileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return filepath.Join(dir, fileNames[0]), nil
}

// EnsureDir creates the driveq directory.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// DBPath resolves the history database location.
func (c *Config) DBPath() (string, error) {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// LogPath resolves the log file location. "stderr" and "" pass through as
// "stderr" and the default file respectively.
func (c *Config) LogPath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	dir, err := Dir()
	if err != nil {
		return "stderr"
	}
	return filepath.Join(dir, "driveq.log")
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the first config file found in Dir, then .env files, then the
// environment. A broken file is reported alongside a usable config built
// from defaults and the environment.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	dir, err := Dir()
	if err == nil {
		for _, name := range fileNames {
			p := filepath.Join(dir, name)
			if _, statErr := os.Stat(p); statErr != nil {
				continue
			}
			if err := decodeFile(cfg, p); err != nil {
				loadErr = err
				cfg = Default()
			}
			break
		}
	}

	envErr := loadDotEnv(dir)
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, errors.Join(loadErr, envErr)
}

// LoadFromPath loads a specific file; unlike Load, a broken file is fatal.
// A broken .env file is still reported alongside a usable Config.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, err
	}
	dir, _ := Dir()
	envErr := loadDotEnv(dir)
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, envErr
}

// ReadFile decodes path over the defaults without .env files or the
// environment. A missing file yields the defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err := decodeFile(cfg, path); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

func finish(cfg *Config) error {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// decodeFile decodes path onto cfg, picking the format by extension.
// Keys absent from the file keep cfg's values.
func decodeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// loadDotEnv reads ./.env and <dir>/.env. Variables already set win, and
// missing files are not an error. A file that does not parse is skipped
// and reported.
func loadDotEnv(dir string) error {
	candidates := []string{".env"}
	if dir != "" {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	var errs []error
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// ApplyEnvOverrides overlays DRIVEQ_* environment variables. Unset
// variables leave fields alone.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SetDefaults fills zero values that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.Upload.MaxSizeMB == 0 {
		c.Upload.MaxSizeMB = d.Upload.MaxSizeMB
	}
	if c.Watch.DebounceMS == 0 {
		c.Watch.DebounceMS = d.Watch.DebounceMS
	}
	if c.Watch.UploadsPerMinute == 0 {
		c.Watch.UploadsPerMinute = d.Watch.UploadsPerMinute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	c.UI.Theme = strings.ToLower(c.UI.Theme)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to Path() in that file's format.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg to path, choosing the format by extension.
func SaveTo(cfg *Config, path string) error {
	data, err := Marshal(cfg, filepath.Ext(path))
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// SaveTOML writes cfg as TOML.
func SaveTOML(cfg *Config, path string) error {
	data, err := Marshal(cfg, ".toml")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, data, 0o600)
}

// Marshal encodes cfg for a file extension (".toml", ".yaml", ".json").
func Marshal(cfg *Config, ext string) ([]byte, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode config: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode config: %w", err)
		}
		return data, nil
	default:
		var buf bytes.Buffer
		buf.WriteString("# driveq configuration file\n")
		buf.WriteString("# Environment variables (DRIVEQ_*) override these values.\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode config: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true, "off": true, "none": true, "disabled": true}
	validThemes = map[string]bool{"auto": true, "dark": true, "light": true}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.API.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, ValidationError{"api.base_url", err.Error()})
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, ValidationError{"api.base_url", "must use http or https"})
	case u.Host == "":
		errs = append(errs, ValidationError{"api.base_url", "missing host"})
	}

	if c.API.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{"api.timeout_secs", "must be 0 (no timeout) or positive"})
	}
	if c.Upload.MaxSizeMB < 1 || c.Upload.MaxSizeMB > 100 {
		errs = append(errs, ValidationError{"upload.max_size_mb", "must be between 1 and 100"})
	}
	if c.Watch.DebounceMS < 0 {
		errs = append(errs, ValidationError{"watch.debounce_ms", "must not be negative"})
	}
	if c.Watch.UploadsPerMinute < 0 {
		errs = append(errs, ValidationError{"watch.uploads_per_minute", "must not be negative"})
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{"logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{"ui.theme", "must be auto, dark or light"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by dotted key ("api.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dotted key. Strings are converted to the field's
// type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("%s is a section, not a setting", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case or kebab-case to a Go field name.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.ToLower(strVal))
			if err != nil {
				switch strings.ToLower(strVal) {
				case "yes", "on":
					boolVal = true
				case "no", "off":
					boolVal = false
				default:
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// AllKeys lists every settable key in dot notation, sorted.
func AllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.Split(f.Tag.Get("toml"), ",")[0]
			if name == "" || name == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	sort.Strings(keys)
	return keys
}

// Clone returns a copy. Config holds no reference types.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as TOML for display.
func (c *Config) String() string {
	data, err := Marshal(c, ".toml")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting forgets the process-wide configuration.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
