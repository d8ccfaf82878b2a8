package config

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/ilc/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	be.Equal(t, cfg.BackendName, BackendX86)
	for ft := Feature(0); ft < FeatCount; ft++ {
		be.True(t, cfg.IsFeatureEnabled(ft))
	}
	for wt := Warning(0); wt < WarnCount; wt++ {
		be.True(t, cfg.IsWarningEnabled(wt))
	}
	be.Equal(t, cfg.FeatureMap["fusion"], FeatFusion)
	be.Equal(t, cfg.WarningMap["redecl-array"], WarnRedeclArray)
}

func TestApplyFlag(t *testing.T) {
	cfg := NewConfig()

	be.True(t, cfg.ApplyFlag("-Fno-fusion"))
	be.True(t, !cfg.IsFeatureEnabled(FeatFusion))
	be.True(t, cfg.ApplyFlag("-Ffusion"))
	be.True(t, cfg.IsFeatureEnabled(FeatFusion))

	be.True(t, cfg.ApplyFlag("-Wno-shr-fold"))
	be.True(t, !cfg.IsWarningEnabled(WarnShrFold))

	be.True(t, cfg.ApplyFlag("-Wno-all"))
	for wt := Warning(0); wt < WarnCount; wt++ {
		be.True(t, !cfg.IsWarningEnabled(wt))
	}
	be.True(t, cfg.ApplyFlag("--Wall"))
	for wt := Warning(0); wt < WarnCount; wt++ {
		be.True(t, cfg.IsWarningEnabled(wt))
	}

	be.True(t, !cfg.ApplyFlag("-Wbogus"))
	be.True(t, !cfg.ApplyFlag("-Fno-bogus"))
	be.True(t, !cfg.ApplyFlag("-O2"))
}

func TestFlagGroups(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "nothing given keeps defaults",
			args: nil,
			check: func(t *testing.T, cfg *Config) {
				be.True(t, cfg.IsWarningEnabled(WarnShrFold))
				be.True(t, cfg.IsFeatureEnabled(FeatFoldSize))
			},
		},
		{
			name: "single flags",
			args: []string{"-Wno-extra", "-Fno-frame-comments"},
			check: func(t *testing.T, cfg *Config) {
				be.True(t, !cfg.IsWarningEnabled(WarnExtra))
				be.True(t, cfg.IsWarningEnabled(WarnShrFold))
				be.True(t, !cfg.IsFeatureEnabled(FeatFrameComments))
				be.True(t, cfg.IsFeatureEnabled(FeatFusion))
			},
		},
		{
			name: "single warning overrides -Wno-all",
			args: []string{"-Wno-all", "-Wredecl-array"},
			check: func(t *testing.T, cfg *Config) {
				be.True(t, !cfg.IsWarningEnabled(WarnShrFold))
				be.True(t, !cfg.IsWarningEnabled(WarnExtra))
				be.True(t, cfg.IsWarningEnabled(WarnRedeclArray))
			},
		},
		{
			name: "disabling wins over enabling",
			args: []string{"-Ffusion", "-Fno-fusion"},
			check: func(t *testing.T, cfg *Config) {
				be.True(t, !cfg.IsFeatureEnabled(FeatFusion))
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := NewConfig()
			fs := cli.NewFlagSet("test")
			warnings, features := cfg.SetupFlagGroups(fs)
			be.Err(t, fs.Parse(test.args), nil)
			cfg.ApplyFlagGroups(warnings, features)
			test.check(t, cfg)
		})
	}
}

func TestSetupFlagGroupsRegistersEveryName(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("test")
	warnings, features := cfg.SetupFlagGroups(fs)
	be.Equal(t, len(warnings), int(WarnCount)+1)
	be.Equal(t, len(features), int(FeatCount))

	for _, name := range []string{"Wall", "Wno-all", "Wshr-fold", "Wno-redecl-array", "Ffusion", "Fno-fold-size", "Fframe-comments"} {
		be.True(t, fs.Lookup(name) != nil)
	}
}

func TestSetTarget(t *testing.T) {
	t.Run("x86_64", func(t *testing.T) {
		cfg := NewConfig()
		be.Err(t, cfg.SetTarget("linux", "amd64", "", ""), nil)
		be.Equal(t, cfg.BackendName, BackendX86)
		be.Equal(t, cfg.WordSize, 8)
		be.Equal(t, cfg.StackAlignment, 16)
	})

	t.Run("qbe with explicit target", func(t *testing.T) {
		cfg := NewConfig()
		be.Err(t, cfg.SetTarget("linux", "arm64", BackendQBE, "arm64"), nil)
		be.Equal(t, cfg.BackendName, BackendQBE)
		be.Equal(t, cfg.QbeTarget, "arm64")
	})

	t.Run("unsupported backend", func(t *testing.T) {
		err := NewConfig().SetTarget("linux", "amd64", "llvm", "")
		be.True(t, err != nil)
		be.True(t, strings.Contains(err.Error(), "unsupported backend 'llvm'"))
	})

	t.Run("unsupported qbe target", func(t *testing.T) {
		err := NewConfig().SetTarget("linux", "amd64", BackendQBE, "pdp11")
		be.True(t, err != nil)
		be.True(t, strings.Contains(err.Error(), "unsupported QBE target 'pdp11'"))
	})
}
