package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	coreconfig "github.com/m3rciful/quizbot/core/config"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

// settings is the logging section resolved to concrete values.
type settings struct {
	level     slog.Level
	format    logFormat
	keyOrder  []string
	profile   string
	sampleNum int
	sampleDen int
	filePath  string
}

func resolveSettings(cfg *coreconfig.LoggingConfig) settings {
	st := settings{
		level:     slog.LevelInfo,
		format:    formatJSON,
		keyOrder:  append([]string(nil), defaultKeyOrder...),
		sampleNum: defaultSampleNum,
		sampleDen: defaultSampleDen,
	}
	if cfg == nil {
		return st
	}

	st.profile = strings.ToLower(strings.TrimSpace(cfg.Profile))
	if st.profile == "" {
		st.profile = "prod"
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "debug":
		st.level = slog.LevelDebug
	case "warn", "warning":
		st.level = slog.LevelWarn
	case "error":
		st.level = slog.LevelError
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "kv", "text", "pretty":
		st.format = formatKV
	case "json":
	default:
		if st.profile == "debug" || st.profile == "dev" {
			st.format = formatKV
		}
	}

	if order := splitKeys(cfg.KeysOrder); len(order) > 0 {
		st.keyOrder = order
	}
	if num, den, ok := parseRatioSpec(cfg.DebugSample); ok {
		st.sampleNum, st.sampleDen = num, den
	}

	dir, file := strings.TrimSpace(cfg.Dir), strings.TrimSpace(cfg.File)
	if dir != "" && file != "" {
		st.filePath = filepath.Join(dir, file)
	}
	return st
}

func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// openOutputs always includes stdout. A log file that cannot be opened is
// reported on stderr and skipped.
func openOutputs(st settings) ([]io.Writer, []io.Closer) {
	writers := []io.Writer{os.Stdout}
	if st.filePath == "" {
		return writers, nil
	}
	if err := os.MkdirAll(filepath.Dir(st.filePath), 0o755); err != nil {
		log.Printf("logger: failed to create log dir: %v", err)
		return writers, nil
	}
	f, err := os.OpenFile(st.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: failed to open log file: %v", err)
		return writers, nil
	}
	return append(writers, f), []io.Closer{f}
}
