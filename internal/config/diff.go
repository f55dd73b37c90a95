package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ScoringChanged, AlignmentChanged and GOPChanged mark sections that can
	// be applied to a running analyzer.
	ScoringChanged   bool
	AlignmentChanged bool
	GOPChanged       bool

	// RestartRequired lists changed sections that only take effect after a
	// restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ScoringChanged && !d.AlignmentChanged && !d.GOPChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.ScoringChanged = old.Scoring != new.Scoring
	d.AlignmentChanged = !reflect.DeepEqual(old.Alignment, new.Alignment)
	d.GOPChanged = !reflect.DeepEqual(old.GOP, new.GOP)

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	restart := []struct {
		name    string
		changed bool
	}{
		{"server", oldServer != newServer},
		{"recognizer", !reflect.DeepEqual(old.Recognizer, new.Recognizer)},
		{"g2p", !reflect.DeepEqual(old.G2P, new.G2P)},
		{"prosody", old.Prosody != new.Prosody},
		{"telemetry", old.Telemetry != new.Telemetry},
	}
	for _, r := range restart {
		if r.changed {
			d.RestartRequired = append(d.RestartRequired, r.name)
		}
	}
	return d
}
