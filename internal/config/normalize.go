package config

import (
	"strings"
	"time"

	"github.com/awsm-dev/awsm/internal/fake"
	"github.com/awsm-dev/awsm/internal/history"
)

const (
	HTTPTimeoutDefault   = 30 * time.Second
	ScriptTimeoutDefault = 5 * time.Second
	LogMaxSizeDefault    = 10
	LogMaxBackupsDefault = 3
	LogMaxAgeDefault     = 28
)

func DefaultSettings() Settings {
	return Settings{
		Locale:                 fake.DefaultLocale,
		HistoryLimit:           history.DefaultLimit,
		PersistScriptVariables: true,
		HTTP: HTTPSettings{
			Timeout:         HTTPTimeoutDefault.String(),
			FollowRedirects: true,
		},
		Scripts: ScriptSettings{
			Timeout: ScriptTimeoutDefault.String(),
		},
		Log: LogSettings{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			MaxSize:    LogMaxSizeDefault,
			MaxBackups: LogMaxBackupsDefault,
			MaxAge:     LogMaxAgeDefault,
		},
	}
}

// NormaliseSettings replaces out-of-range or unknown values with defaults.
func NormaliseSettings(in Settings) Settings {
	def := DefaultSettings()
	out := in

	out.Locale = fake.NormalizeLocale(in.Locale)
	if out.HistoryLimit <= 0 {
		out.HistoryLimit = def.HistoryLimit
	}
	out.HTTP.Timeout = normaliseDuration(in.HTTP.Timeout, HTTPTimeoutDefault)
	out.HTTP.Proxy = strings.TrimSpace(in.HTTP.Proxy)
	out.Scripts.Timeout = normaliseDuration(in.Scripts.Timeout, ScriptTimeoutDefault)

	out.Log.Level = oneOf(in.Log.Level, def.Log.Level, "debug", "info", "warn", "error")
	out.Log.Format = oneOf(in.Log.Format, def.Log.Format, "json", "console")
	out.Log.Output = oneOf(in.Log.Output, def.Log.Output, "stdout", "stderr", "file", "both")
	out.Log.File = strings.TrimSpace(in.Log.File)
	out.Log.MaxSize = positive(in.Log.MaxSize, def.Log.MaxSize)
	out.Log.MaxBackups = positive(in.Log.MaxBackups, def.Log.MaxBackups)
	out.Log.MaxAge = positive(in.Log.MaxAge, def.Log.MaxAge)
	return out
}

func normaliseDuration(value string, fallback time.Duration) string {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback.String()
	}
	return d.String()
}

func oneOf(value, fallback string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return a
		}
	}
	return fallback
}

func positive(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
