package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config opciones para el logger.
type Config struct {
	Env   string // development -> consola legible; production -> JSON
	Level string // trace, debug, info, warn, error
	Dir   string // directorio de logs diarios; vacío = solo stdout
}

// Logger wrapper sobre zerolog para inyección y consistencia. Mantiene tres
// flujos append-only por día: <fecha>.log (todo), <fecha>_errors.log (>= error)
// y <fecha>_sri.log (tráfico con los servicios del SRI).
type Logger struct {
	zl  zerolog.Logger
	sri zerolog.Logger
}

// New crea un logger estructurado con timestamps ISO de milisegundos.
// En development la salida de consola es legible; en production es JSON.
func New(cfg Config) *Logger {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"

	var console io.Writer = os.Stdout
	if cfg.Env == "development" {
		console = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	level := parseLevel(cfg.Level)

	main := console
	sriOut := console
	if cfg.Dir != "" {
		general := newDailyWriter(cfg.Dir, "")
		errores := newDailyWriter(cfg.Dir, "_errors")
		main = zerolog.MultiLevelWriter(console, general, &minLevelWriter{w: errores, min: zerolog.ErrorLevel})
		sriOut = zerolog.MultiLevelWriter(console, general, newDailyWriter(cfg.Dir, "_sri"))
	}

	zl := zerolog.New(main).Level(level).With().Timestamp().Logger()
	sri := zerolog.New(sriOut).Level(level).With().Timestamp().Str("stream", "sri").Logger()

	// Redirigir el logger global de zerolog para librerías que lo usen
	log.Logger = zl

	return &Logger{zl: zl, sri: sri}
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Trace, Debug, Info, Warn, Error delegados a zerolog.
func (l *Logger) Trace() *zerolog.Event { return l.zl.Trace() }
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// With crea un sublogger con campos fijos.
func (l *Logger) With() zerolog.Context {
	return l.zl.With()
}

// SRI devuelve el logger del flujo dedicado al tráfico con el SRI
// (payloads SOAP, estados, reintentos).
func (l *Logger) SRI() *zerolog.Logger {
	return &l.sri
}

// Zerolog devuelve el logger interno por si se necesita la API directa.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// ── escritores de archivo diarios ─────────────────────────────────────────────

// dailyWriter escribe en <dir>/<YYYY-MM-DD><sufijo>.log y rota el archivo al
// cambiar el día. Seguro para uso concurrente.
type dailyWriter struct {
	mu     sync.Mutex
	dir    string
	sufijo string
	fecha  string
	f      *os.File
}

func newDailyWriter(dir, sufijo string) *dailyWriter {
	return &dailyWriter{dir: dir, sufijo: sufijo}
}

func (w *dailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hoy := time.Now().Format("2006-01-02")
	if w.f == nil || w.fecha != hoy {
		if w.f != nil {
			_ = w.f.Close()
		}
		if err := os.MkdirAll(w.dir, 0o755); err != nil {
			return 0, err
		}
		f, err := os.OpenFile(filepath.Join(w.dir, hoy+w.sufijo+".log"),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return 0, err
		}
		w.f, w.fecha = f, hoy
	}
	return w.f.Write(p)
}

// minLevelWriter filtra eventos por nivel mínimo (para el flujo _errors).
type minLevelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (m *minLevelWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (m *minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= m.min {
		return m.w.Write(p)
	}
	return len(p), nil
}
