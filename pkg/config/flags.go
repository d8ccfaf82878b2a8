package config

import "github.com/xplshn/ilc/pkg/cli"

// SetupFlagGroups registers -W<warning>/-Wno-<warning> and
// -F<feature>/-Fno-<feature> on fs, plus -Wall and -Wno-all. Pass the
// returned entries to ApplyFlagGroups after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warnings = append(warnings, groupEntry("W", info))
	}
	warnings = append(warnings, groupEntry("W", Info{Name: "all", Description: "Enable every warning."}))
	for i := Feature(0); i < FeatCount; i++ {
		features = append(features, groupEntry("F", c.Features[i]))
	}

	fs.AddFlagGroup("Warning Flags", "warning", "Available Warnings:", warnings)
	fs.AddFlagGroup("Feature Flags", "feature", "Available Features:", features)
	return warnings, features
}

func groupEntry(prefix string, info Info) cli.FlagGroupEntry {
	return cli.FlagGroupEntry{
		Name:     info.Name,
		Prefix:   prefix,
		Usage:    info.Description,
		Default:  info.Enabled,
		Enabled:  new(bool),
		Disabled: new(bool),
	}
}

// ApplyFlagGroups copies the group flags given on the command line into the
// configuration. -Wall and -Wno-all apply first so single warnings can
// override them; a -no- flag wins over its enabling twin.
func (c *Config) ApplyFlagGroups(warnings, features []cli.FlagGroupEntry) {
	for _, e := range warnings {
		if e.Name != "all" {
			continue
		}
		for i := Warning(0); i < WarnCount; i++ {
			if *e.Enabled {
				c.SetWarning(i, true)
			}
			if *e.Disabled {
				c.SetWarning(i, false)
			}
		}
	}
	for _, e := range warnings {
		if w, ok := c.WarningMap[e.Name]; ok {
			if *e.Enabled {
				c.SetWarning(w, true)
			}
			if *e.Disabled {
				c.SetWarning(w, false)
			}
		}
	}
	for _, e := range features {
		if f, ok := c.FeatureMap[e.Name]; ok {
			if *e.Enabled {
				c.SetFeature(f, true)
			}
			if *e.Disabled {
				c.SetFeature(f, false)
			}
		}
	}
}
