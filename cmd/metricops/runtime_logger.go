package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/metricops/internal/config"
)

// runtimeLogger writes every event to stderr and, in dev mode, to a daily logfmt file.
type runtimeLogger struct {
	outputs []*charmLog.Logger
	file    *os.File
}

func newLogSink(w io.Writer, level charmLog.Level, formatter charmLog.Formatter) *charmLog.Logger {
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})
}

func newRuntimeLogger(stderr io.Writer, devMode bool, cfg config.Config, workDir string, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Logging.Level)))
	if err != nil {
		return nil, fmt.Errorf("logging level %q: %w", cfg.Logging.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}
	rl := &runtimeLogger{outputs: []*charmLog.Logger{newLogSink(stderr, level, charmLog.TextFormatter)}}
	if !devMode || !cfg.Logging.DevFile.Enabled {
		return rl, nil
	}

	if now == nil {
		now = time.Now
	}
	path := devLogFilePath(cfg.DevFileDir(workDir), now().UTC())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("dev log dir %q: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("dev log file %q: %w", path, err)
	}
	rl.file = f
	rl.outputs = append(rl.outputs, newLogSink(f, level, charmLog.LogfmtFormatter))
	return rl, nil
}

// DevLogPath is empty unless a dev log file is open.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Name()
}

func (l *runtimeLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	l.outputs = l.outputs[:1]
	return f.Close()
}

func (l *runtimeLogger) emit(level charmLog.Level, msg any, keyvals []any) {
	if l == nil {
		return
	}
	for _, out := range l.outputs {
		out.Log(level, msg, keyvals...)
	}
}

func (l *runtimeLogger) Debug(msg any, keyvals ...any) { l.emit(charmLog.DebugLevel, msg, keyvals) }
func (l *runtimeLogger) Info(msg any, keyvals ...any)  { l.emit(charmLog.InfoLevel, msg, keyvals) }
func (l *runtimeLogger) Warn(msg any, keyvals ...any)  { l.emit(charmLog.WarnLevel, msg, keyvals) }
func (l *runtimeLogger) Error(msg any, keyvals ...any) { l.emit(charmLog.ErrorLevel, msg, keyvals) }

// devLogFilePath names one log file per UTC day, e.g. metricops-20260218.log.
func devLogFilePath(dir string, now time.Time) string {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(".metricops", "log")
	}
	return filepath.Join(filepath.Clean(dir), fmt.Sprintf("%s-%s.log", appName, now.Format("20060102")))
}
