package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: MELODEUS_LOG_PATH environment variable
	envPath := os.Getenv("MELODEUS_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// SessionStart records a capture session coming up on a device.
func SessionStart(device string, sampleRate int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", device).
		Int("rate", sampleRate).
		Msg("session_start")
}

// SessionEnd records a torn-down session with its lifetime paint count.
func SessionEnd(device string, paints int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", device).
		Int("paints", paints).
		Msg("session_end")
}

// PermissionState records capture-permission transitions.
func PermissionState(state string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("state", state).Msg("permission")
}

type RenderMetricsData struct {
	Ticks      int
	DroppedS   float64
	AvgTickMs  float64
	PeakTickMs float64
}

// RenderMetrics summarizes a render loop's run after it stops.
func RenderMetrics(m RenderMetricsData) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("ticks", m.Ticks).
		Float64("dropped_s", m.DroppedS).
		Float64("avg_tick_ms", m.AvgTickMs).
		Float64("peak_tick_ms", m.PeakTickMs).
		Msg("render_metrics")
}
