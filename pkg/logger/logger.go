// Package logger hands out named logrus loggers that write to the console
// and to a per-process log file.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// TimeFormat is used for every log line.
	TimeFormat = "2006-01-02 15:04:05"
	// FileStampFormat names the log file of a process.
	FileStampFormat = "20060102_150405"

	DefaultName = "fe_automation"
	DefaultDir  = "logs"
)

// ArtifactError is returned when the log file cannot be created. The logger
// returned alongside it is still usable on the console.
type ArtifactError struct {
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("creating log file %s: %v", e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// Formatter renders "timestamp - name - LEVEL - message".
type Formatter struct {
	Name string
}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s - %s - %s - %s",
		entry.Time.Format(TimeFormat), f.Name, levelName(entry.Level), entry.Message)
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel:
		return "CRITICAL"
	case logrus.WarnLevel:
		return "WARNING"
	default:
		return strings.ToUpper(l.String())
	}
}

// ParseLevel accepts logrus and Python style level names. Unknown names map
// to info.
func ParseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return logrus.FatalLevel
	case "":
		return logrus.InfoLevel
	}
	l, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

type entry struct {
	logger  *logrus.Logger
	file    *os.File
	console bool
}

// Registry owns the named loggers of a process. Create one at startup and
// pass it, or the loggers it returns, to whoever needs them.
type Registry struct {
	mu      sync.Mutex
	dir     string
	console io.Writer
	now     func() time.Time
	loggers map[string]*entry
}

type Option func(*Registry)

// WithDir sets the directory log files are created in.
func WithDir(dir string) Option {
	return func(r *Registry) { r.dir = dir }
}

// WithConsole replaces stderr as the console output.
func WithConsole(w io.Writer) Option {
	return func(r *Registry) { r.console = w }
}

// WithClock is used to stamp log file names.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		dir:     DefaultDir,
		console: os.Stderr,
		now:     time.Now,
		loggers: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the logger registered under name, configuring its outputs.
// Calling it again for the same name replaces the outputs instead of adding
// to them, and closes the file opened by the previous call.
func (r *Registry) Get(name string, level logrus.Level, toConsole, toFile bool) (*logrus.Logger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.loggers[name]
	if !ok {
		e = &entry{logger: logrus.New()}
		r.loggers[name] = e
	}
	// The old file is closed only after the new outputs are installed.
	prev := e.file
	e.file = nil
	e.console = toConsole

	e.logger.SetLevel(level)
	e.logger.SetFormatter(&Formatter{Name: name})

	var (
		writers []io.Writer
		fileErr error
	)
	if toConsole {
		writers = append(writers, r.console)
	}
	if toFile {
		f, err := r.openFile(name)
		if err != nil {
			fileErr = err
		} else {
			e.file = f
			writers = append(writers, f)
		}
	}

	switch len(writers) {
	case 0:
		e.logger.SetOutput(io.Discard)
	case 1:
		e.logger.SetOutput(writers[0])
	default:
		e.logger.SetOutput(io.MultiWriter(writers...))
	}
	if prev != nil {
		prev.Close()
	}

	return e.logger, fileErr
}

func (r *Registry) openFile(name string) (*os.File, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("%s_%s.log", name, r.now().Format(FileStampFormat)))
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	return f, nil
}

// FilePath returns the log file currently attached to name, if any.
func (r *Registry) FilePath(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.loggers[name]; ok && e.file != nil {
		return e.file.Name()
	}
	return ""
}

// Close closes every open log file. Console loggers keep working; file-only
// loggers go quiet.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, e := range r.loggers {
		if e.file == nil {
			continue
		}
		if err := e.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.file = nil
		if e.console {
			e.logger.SetOutput(r.console)
		} else {
			e.logger.SetOutput(io.Discard)
		}
	}
	return firstErr
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
