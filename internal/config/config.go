// Package config loads the prview configuration: TOML file under the user
// config directory, overridable by PRVIEW_ environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dharper/prview/internal/domain"
)

// AI is the [ai] section controlling the rally.
type AI struct {
	Reviewer                string   `koanf:"reviewer"`
	Reviewee                string   `koanf:"reviewee"`
	MaxIterations           int      `koanf:"max_iterations"`
	TimeoutSecs             int      `koanf:"timeout_secs"`
	PromptDir               string   `koanf:"prompt_dir"`
	AutoPost                bool     `koanf:"auto_post"`
	AllowPush               bool     `koanf:"allow_push"`
	ReviewerAdditionalTools []string `koanf:"reviewer_additional_tools"`
	RevieweeAdditionalTools []string `koanf:"reviewee_additional_tools"`
}

// Diff is the [diff] section controlling rendering.
type Diff struct {
	Theme    string `koanf:"theme"`
	TabWidth int    `koanf:"tab_width"`
}

// Config is the merged application configuration.
type Config struct {
	AI     AI     `koanf:"ai"`
	Diff   Diff   `koanf:"diff"`
	Editor string `koanf:"editor"`
}

// Timeout returns the per-agent-run deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.AI.TimeoutSecs) * time.Second
}

// DefaultPath returns <user-config>/prview/config.toml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", domain.ErrConfig("cannot locate user config directory", err)
	}
	return filepath.Join(base, "prview", "config.toml"), nil
}

// Load reads configuration from path, falling back to the default location
// when path is empty. A missing file yields defaults; a malformed file is a
// ConfigError.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	_ = k.Load(confmap.Provider(map[string]interface{}{
		"ai.reviewer":       "claude",
		"ai.reviewee":       "claude",
		"ai.max_iterations": 5,
		"ai.timeout_secs":   600,
		"ai.auto_post":      false,
		"ai.allow_push":     false,
		"diff.theme":        "default",
		"diff.tab_width":    4,
	}, "."), nil)

	if path == "" {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, domain.ErrConfig("failed to parse config file", err)
			}
		}
	}

	_ = k.Load(env.Provider("PRVIEW_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "PRVIEW_")), "_", ".")
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, domain.ErrConfig("failed to decode config", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the rest of the program cannot honour.
func Validate(cfg *Config) error {
	switch cfg.AI.Reviewer {
	case "claude", "codex":
	default:
		return domain.ErrConfig("ai.reviewer must be claude or codex", nil)
	}
	switch cfg.AI.Reviewee {
	case "claude", "codex":
	default:
		return domain.ErrConfig("ai.reviewee must be claude or codex", nil)
	}
	if cfg.AI.MaxIterations <= 0 {
		return domain.ErrConfig("ai.max_iterations must be positive", nil)
	}
	if cfg.AI.TimeoutSecs <= 0 {
		return domain.ErrConfig("ai.timeout_secs must be positive", nil)
	}
	if cfg.Diff.TabWidth <= 0 {
		return domain.ErrConfig("diff.tab_width must be positive", nil)
	}
	return nil
}
