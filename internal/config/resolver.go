// Package config resolves chatlift settings from a YAML config file,
// environment variables and CLI flags, with CLI > env > file > default
// precedence. Every resolved value remembers where it came from so the
// CLI can explain the effective configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-level overrides into resolution.
type ResolveOptions struct {
	ConfigPath   string
	CLIDBPath    string
	CLIDirection string
	CLISplitX    string
	CLIExportDir string
}

// ResolvedConfig is the effective configuration with provenance.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath        ResolvedValue `json:"db_path"`
	Direction     ResolvedValue `json:"direction"`
	VerticalGap   ResolvedValue `json:"vertical_gap"`
	HorizontalGap ResolvedValue `json:"horizontal_gap"`
	SplitX        ResolvedValue `json:"split_x"`
	ExportDir     ResolvedValue `json:"export_dir"`
	ExportFormat  ResolvedValue `json:"export_format"`

	// ExtraStickerPhrases extends the built-in sticker phrase table.
	// File-only: there is no sensible env or flag encoding for a word list.
	ExtraStickerPhrases []string `json:"extra_sticker_phrases,omitempty"`
}

type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	Pipeline struct {
		Direction           string   `yaml:"direction"`
		VerticalGap         int      `yaml:"vertical_gap"`
		HorizontalGap       int      `yaml:"horizontal_gap"`
		SplitX              int      `yaml:"split_x"`
		ExtraStickerPhrases []string `yaml:"extra_sticker_phrases"`
	} `yaml:"pipeline"`
	Export struct {
		Dir    string `yaml:"dir"`
		Format string `yaml:"format"`
	} `yaml:"export"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatlift", "config.yaml")
}

// ResolveConfig loads, layers and returns the effective configuration.
// A missing config file is not an error; a malformed one is.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}
	applyDefaults(&out)

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Direction, cfg.Pipeline.Direction, SourceConfig, path)
		applyInt(&out.VerticalGap, cfg.Pipeline.VerticalGap, SourceConfig, path)
		applyInt(&out.HorizontalGap, cfg.Pipeline.HorizontalGap, SourceConfig, path)
		applyInt(&out.SplitX, cfg.Pipeline.SplitX, SourceConfig, path)
		apply(&out.ExportDir, cfg.Export.Dir, SourceConfig, path)
		apply(&out.ExportFormat, cfg.Export.Format, SourceConfig, path)
		out.ExtraStickerPhrases = append(out.ExtraStickerPhrases, cfg.Pipeline.ExtraStickerPhrases...)
	}

	applyEnv(&out.DBPath, "CHATLIFT_DB")
	applyEnv(&out.DBPath, "CHATLIFT_DB_PATH")
	applyEnv(&out.Direction, "CHATLIFT_DIRECTION")
	applyEnv(&out.VerticalGap, "CHATLIFT_VERTICAL_GAP")
	applyEnv(&out.HorizontalGap, "CHATLIFT_HORIZONTAL_GAP")
	applyEnv(&out.SplitX, "CHATLIFT_SPLIT_X")
	applyEnv(&out.ExportDir, "CHATLIFT_EXPORT_DIR")
	applyEnv(&out.ExportFormat, "CHATLIFT_EXPORT_FORMAT")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Direction, opts.CLIDirection, SourceCLI, "--direction")
	apply(&out.SplitX, opts.CLISplitX, SourceCLI, "--split-x")
	apply(&out.ExportDir, opts.CLIExportDir, SourceCLI, "--out")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.ExportDir.Value != "" {
		out.ExportDir.Value = expandUserPath(out.ExportDir.Value)
	}

	if d := out.Direction.Value; d != "up" && d != "down" {
		return out, fmt.Errorf("invalid direction %q (want up or down)", d)
	}

	return out, nil
}

// IntValue parses a resolved value as an integer, returning 0 for empty.
func (v ResolvedValue) IntValue() (int, error) {
	s := strings.TrimSpace(v.Value)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s (from %s): %w", v.Value, v.From, err)
	}
	return n, nil
}

func applyDefaults(out *ResolvedConfig) {
	def := func(v string) ResolvedValue {
		return ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
	}
	out.DBPath = def("~/.chatlift/chatlift.db")
	out.Direction = def("up")
	out.ExportDir = def(".")
	out.ExportFormat = def("json")
	out.VerticalGap = ResolvedValue{Source: SourceDefault, From: "built-in default"}
	out.HorizontalGap = ResolvedValue{Source: SourceDefault, From: "built-in default"}
	out.SplitX = ResolvedValue{Source: SourceDefault, From: "built-in default"}
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyInt(dst *ResolvedValue, raw int, source ValueSource, from string) {
	if raw == 0 {
		return
	}
	*dst = ResolvedValue{Value: strconv.Itoa(raw), Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
