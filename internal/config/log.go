package config

// LogConfig configures the slog handlers and the rotating log files.
type LogConfig struct {
	Level      string // debug, info, warn, error
	File       string // optional JSON log file
	RenderFile string // per-render state changes
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// LoadLogConfig reads LOG_* variables.
func LoadLogConfig() LogConfig {
	return LogConfig{
		Level:      envStr("LOG_LEVEL", "info"),
		File:       envStr("LOG_FILE", ""),
		RenderFile: envStr("RENDER_LOG_FILE", "logs/render.log"),
		MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 50),
		MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
		MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 28),
	}
}
