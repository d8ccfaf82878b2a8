package config

import (
	"fmt"
	"os"
	"strings"

	"modernc.org/libqbe"
)

type Feature int

const (
	FeatFusion Feature = iota
	FeatFoldSize
	FeatFrameComments
	FeatCount
)

type Warning int

const (
	WarnShrFold Warning = iota
	WarnRedeclArray
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Backend names accepted by SetTarget
const (
	BackendX86 = "x86_64"
	BackendQBE = "qbe"
)

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	BackendName    string
	QbeTarget      string
	GOOS           string
	GOARCH         string
	WordSize       int
	StackAlignment int
	LinkerArgs     []string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:       make(map[Feature]Info),
		Warnings:       make(map[Warning]Info),
		FeatureMap:     make(map[string]Feature),
		WarningMap:     make(map[string]Warning),
		BackendName:    BackendX86,
		WordSize:       8,
		StackAlignment: 16,
	}

	features := map[Feature]Info{
		FeatFusion:        {"fusion", true, "Jump straight to the head of a following if/while instead of emitting a join label."},
		FeatFoldSize:      {"fold-size", true, "Compute dynamic array sizes without variables at compile time."},
		FeatFrameComments: {"frame-comments", true, "Annotate the frame reservation with #SCANS/#VARS comments."},
	}

	warnings := map[Warning]Info{
		WarnShrFold:     {"shr-fold", true, "Warn when a folded array size uses '>>', which folds like '%'."},
		WarnRedeclArray: {"redecl-array", true, "Warn when an array is declared again and keeps its first storage."},
		WarnExtra:       {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget selects the backend and, for QBE, the libqbe target.
func (c *Config) SetTarget(goos, goarch, backend, qbeTarget string) error {
	c.GOOS, c.GOARCH = goos, goarch

	switch backend {
	case "", BackendX86:
		c.BackendName = BackendX86
		if goarch != "amd64" {
			fmt.Fprintf(os.Stderr, "ilc: warning: the %s backend emits amd64 code but the host is %s.\n", BackendX86, goarch)
		}
		c.WordSize, c.StackAlignment = 8, 16
		return nil
	case BackendQBE:
		c.BackendName = BackendQBE
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: '%s', '%s'", backend, BackendX86, BackendQBE)
	}

	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
		fmt.Fprintf(os.Stderr, "ilc: info: no target specified, defaulting to host target '%s'\n", c.QbeTarget)
	} else {
		c.QbeTarget = qbeTarget
	}

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.StackAlignment = 8, 16
	default:
		return fmt.Errorf("unsupported QBE target '%s': generated code needs a 64-bit word", c.QbeTarget)
	}
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyFlag applies one -W<name>, -Wno-<name>, -F<name> or -Fno-<name> flag.
// It reports whether the flag named a known warning or feature.
func (c *Config) ApplyFlag(flag string) bool {
	trimmed := strings.TrimLeft(flag, "-")
	isWarning := strings.HasPrefix(trimmed, "W")
	if !isWarning && !strings.HasPrefix(trimmed, "F") {
		return false
	}
	name := trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if isWarning {
		if name == "all" {
			for i := Warning(0); i < WarnCount; i++ {
				c.SetWarning(i, enable)
			}
			return true
		}
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
			return true
		}
		return false
	}
	if f, ok := c.FeatureMap[name]; ok {
		c.SetFeature(f, enable)
		return true
	}
	return false
}
