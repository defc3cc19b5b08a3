// Package log is a small leveled logger used across layersync. It wraps the
// standard library logger so output stays plain text on stderr.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
)

// Level is the verbosity of the logger.
type Level int

const (
	FATAL Level = iota
	ERROR
	WARN
	INFO
	DEBUG
)

var levelNames = map[Level]string{
	FATAL: "FATAL",
	ERROR: "ERROR",
	WARN:  "WARN",
	INFO:  "INFO",
	DEBUG: "DEBUG",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel maps a level name (case insensitive) to a Level.
func ParseLevel(name string) (Level, error) {
	for lvl, n := range levelNames {
		if strings.EqualFold(n, name) {
			return lvl, nil
		}
	}
	return INFO, ErrUnknownLevel(name)
}

// ErrUnknownLevel is returned by ParseLevel for unrecognized names.
type ErrUnknownLevel string

func (e ErrUnknownLevel) Error() string {
	return fmt.Sprintf("log: unknown level %q", string(e))
}

var (
	mu       sync.RWMutex
	logLevel = INFO
	logger   = stdlog.New(os.Stderr, "", stdlog.LstdFlags)
)

// SetLogLevel sets the maximum level that will be written.
func SetLogLevel(lvl Level) {
	mu.Lock()
	logLevel = lvl
	mu.Unlock()
}

// SetOutput redirects log output. Mostly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger.SetOutput(w)
	mu.Unlock()
}

func enabled(lvl Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return lvl <= logLevel
}

func output(lvl Level, msg string) {
	if !enabled(lvl) {
		return
	}
	// depth 3: output -> Debugf/Debug -> caller
	logger.Output(3, "["+lvl.String()+"] "+msg)
}

func Debug(args ...interface{})                 { output(DEBUG, fmt.Sprint(args...)) }
func Debugf(format string, args ...interface{}) { output(DEBUG, fmt.Sprintf(format, args...)) }
func Info(args ...interface{})                  { output(INFO, fmt.Sprint(args...)) }
func Infof(format string, args ...interface{})  { output(INFO, fmt.Sprintf(format, args...)) }
func Warn(args ...interface{})                  { output(WARN, fmt.Sprint(args...)) }
func Warnf(format string, args ...interface{})  { output(WARN, fmt.Sprintf(format, args...)) }
func Error(args ...interface{})                 { output(ERROR, fmt.Sprint(args...)) }
func Errorf(format string, args ...interface{}) { output(ERROR, fmt.Sprintf(format, args...)) }

// Fatal logs and exits with status 1.
func Fatal(args ...interface{}) {
	output(FATAL, fmt.Sprint(args...))
	os.Exit(1)
}

// Fatalf logs and exits with status 1.
func Fatalf(format string, args ...interface{}) {
	output(FATAL, fmt.Sprintf(format, args...))
	os.Exit(1)
}
