// Package log writes structured diagnostics and the feature-vector
// results of analyzed recordings to per-user log files.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	resultsFile *os.File
	logMu       sync.Mutex
	logReady    bool
	pid         int
	dir         string
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

	// Priority 2: VOCAP_LOG_PATH environment variable
	envPath := os.Getenv("VOCAP_LOG_PATH")
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

	resultsPath := filepath.Join(dir, "results_log.txt")
	resultsFile, err = os.OpenFile(resultsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
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
	if resultsFile != nil {
		resultsFile.Close()
		resultsFile = nil
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

func SessionStart(device string, sampleRate, channels int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", device).
		Int("sample_rate", sampleRate).
		Int("channels", channels).
		Msg("session_start")
}

func RecordingFinished(audioS float64, payloadKB float64, autoStopped bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("audio_s", audioS).
		Float64("payload_kb", payloadKB).
		Bool("auto_stopped", autoStopped).
		Msg("recording_finished")
}

// UploadMetrics records the network phase timings of one upload attempt.
type UploadMetrics struct {
	Attempt      int
	DNSTimeMs    float64
	ConnectMs    float64
	TLSTimeMs    float64
	TTFBMs       float64
	DownloadMs   float64
	TotalTimeMs  float64
	ConnReused   bool
	TLSProto     string
	ResponseSize int
}

func Upload(m UploadMetrics) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Int("attempt", m.Attempt).
		Str("conn", connStatus)
	if m.TLSProto != "" {
		ev = ev.Str("tls_proto", m.TLSProto)
	}
	ev.Float64("dns_ms", m.DNSTimeMs).
		Float64("connect_ms", m.ConnectMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("download_ms", m.DownloadMs).
		Float64("total_ms", m.TotalTimeMs).
		Int("resp_bytes", m.ResponseSize).
		Msg("upload")
}

// Result appends one analyzed feature vector to the results log as a
// tab-separated name=value line.
func Result(names []string, values []float64) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()

	pairs := make([]string, 0, len(names))
	for i, name := range names {
		if i >= len(values) {
			break
		}
		pairs = append(pairs, fmt.Sprintf("%s=%g", name, values[i]))
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n",
		time.Now().Format("2006-01-02 15:04:05"), pid, strings.Join(pairs, "\t"))
	resultsFile.WriteString(line)
}
