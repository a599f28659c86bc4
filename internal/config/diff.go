package config

import "reflect"

// ConfigDiff describes what changed between two configs. The log level is
// the only setting applied live; everything else is reported so the reload
// log can say a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartNeeded lists the sections whose changes only take effect
	// after a restart.
	RestartNeeded []string
}

// Empty reports whether the diff carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && len(d.RestartNeeded) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		!reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartNeeded = append(d.RestartNeeded, "server")
	}
	if old.Session != new.Session {
		d.RestartNeeded = append(d.RestartNeeded, "session")
	}
	if !reflect.DeepEqual(old.Speech, new.Speech) {
		d.RestartNeeded = append(d.RestartNeeded, "speech")
	}
	if !reflect.DeepEqual(old.Transcribe, new.Transcribe) {
		d.RestartNeeded = append(d.RestartNeeded, "transcribe")
	}
	if old.Cache != new.Cache {
		d.RestartNeeded = append(d.RestartNeeded, "cache")
	}
	if old.History != new.History {
		d.RestartNeeded = append(d.RestartNeeded, "history")
	}
	if old.Playback != new.Playback {
		d.RestartNeeded = append(d.RestartNeeded, "playback")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartNeeded = append(d.RestartNeeded, "telemetry")
	}

	return d
}
