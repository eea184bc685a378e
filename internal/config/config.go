// Package config loads scribe's TOML configuration file, applying defaults
// for anything left unset and turning unrecognized keys into warnings
// rather than hard failures, via github.com/BurntSushi/toml's
// MetaData.Undecoded.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/scribehq/scribe/internal/errs"
)

// Audio holds [audio] section keys.
type Audio struct {
	SampleRate int    `toml:"sample_rate"`
	Device     string `toml:"device"`
}

// Vad holds [vad] section keys, mirroring internal/vad.Config.
type Vad struct {
	Aggressiveness int `toml:"aggressiveness"`
	SilenceMS      int `toml:"silence_ms"`
	MinDurationMS  int `toml:"min_duration_ms"`
	SkipInitialMS  int `toml:"skip_initial_ms"`
}

// Transcription holds [transcription] section keys.
type Transcription struct {
	Backend        string `toml:"backend"`
	Model          string `toml:"model"`
	Device         string `toml:"device"`
	Language       string `toml:"language"`
	InitialPrompt  string `toml:"initial_prompt"`
	APIKeyEnv      string `toml:"api_key_env"`
	APIModel       string `toml:"api_model"`
	APITimeoutSecs int    `toml:"api_timeout_secs"`
}

// Injection holds [injection] section keys.
type Injection struct {
	Method  string `toml:"method"`
	DelayMS int    `toml:"delay_ms"`
}

// Notifications holds [notifications] section keys.
type Notifications struct {
	EnableStatus  bool `toml:"enable_status"`
	EnableErrors  bool `toml:"enable_errors"`
	ShowPreview   bool `toml:"show_preview"`
	PreviewLength int  `toml:"preview_length"`
}

// Logging holds [logging] section keys.
type Logging struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Config is the fully-parsed contents of ~/.config/scribe/config.toml.
type Config struct {
	Audio         Audio         `toml:"audio"`
	Vad           Vad           `toml:"vad"`
	Transcription Transcription `toml:"transcription"`
	Injection     Injection     `toml:"injection"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: Audio{SampleRate: 16000},
		Vad: Vad{
			Aggressiveness: 2,
			SilenceMS:      500,
			MinDurationMS:  250,
			SkipInitialMS:  100,
		},
		Transcription: Transcription{
			Backend:        "local",
			Model:          "base",
			Device:         "auto",
			APIKeyEnv:      "OPENAI_API_KEY",
			APITimeoutSecs: 30,
		},
		Injection: Injection{Method: "dotool", DelayMS: 0},
		Notifications: Notifications{
			EnableStatus:  true,
			EnableErrors:  true,
			ShowPreview:   true,
			PreviewLength: 60,
		},
		Logging: Logging{Level: "info"},
	}
}

// DefaultPath returns ~/.config/scribe/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.KindConfigMissing, "resolving home directory", err)
	}
	return filepath.Join(home, ".config", "scribe", "config.toml"), nil
}

// Load reads and parses the TOML file at path, layering it over Default().
// A missing file is not an error: the daemon runs on defaults. Unknown keys
// produce log warnings via logger, per spec.md §6 ("Unknown keys are
// warnings, not errors").
func Load(path string, logger *slog.Logger) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errs.Wrap(errs.KindConfigMissing, fmt.Sprintf("reading %s", path), err)
	}

	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, errs.Wrap(errs.KindConfigInvalid, fmt.Sprintf("parsing %s", path), err)
	}

	for _, key := range meta.Undecoded() {
		if logger != nil {
			logger.Warn("unrecognized config key", "key", key.String())
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects out-of-range values that would otherwise surface as
// confusing runtime failures, per spec.md §7's "Config errors at startup
// are fatal."
func (c Config) Validate() error {
	if c.Vad.Aggressiveness < 0 || c.Vad.Aggressiveness > 3 {
		return errs.New(errs.KindConfigInvalid, "vad.aggressiveness must be 0..3")
	}
	if c.Injection.DelayMS < 0 || c.Injection.DelayMS > 100 {
		return errs.New(errs.KindConfigInvalid, "injection.delay_ms must be 0..100")
	}
	switch c.Transcription.Backend {
	case "local", "openai":
	default:
		return errs.New(errs.KindConfigInvalid, "transcription.backend must be \"local\" or \"openai\"")
	}
	return nil
}
