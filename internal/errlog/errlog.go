// Package errlog appends human-readable error reports to error.log in the
// user data directory.
package errlog

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"

	"github.com/zjrosen/erwt/internal/channel"
	"github.com/zjrosen/erwt/internal/log"
)

// FileName is the log file inside the user data directory.
const FileName = "error.log"

// ErrNilStore is returned by New without a store.
var ErrNilStore = errors.New("errlog: store is undefined")

// Store is the file persistence errlog writes through.
// Append must create a missing file and serialize concurrent calls.
type Store interface {
	Append(name, data string) error
}

// Caller is the source location an error was created at. Go stack frames
// carry no column, so Column is always 0.
type Caller struct {
	File   string
	Line   int
	Column int
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// CallerOf finds the innermost stack trace in err's chain. The creation frame
// is used, or for errors built while recovering a panic, the frame that
// panicked.
func CallerOf(err error) (Caller, bool) {
	var st errors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if tracer, ok := e.(stackTracer); ok {
			st = tracer.StackTrace()
		}
	}
	if len(st) == 0 {
		return Caller{}, false
	}

	frame := st[0]
	for i, f := range st {
		if isPanicFrame(f) && i+1 < len(st) {
			frame = st[i+1]
			break
		}
	}

	pc := uintptr(frame) - 1
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return Caller{}, false
	}
	file, line := fn.FileLine(pc)
	return Caller{File: file, Line: line}, true
}

func isPanicFrame(f errors.Frame) bool {
	fn := runtime.FuncForPC(uintptr(f) - 1)
	if fn == nil {
		return false
	}
	switch fn.Name() {
	case "runtime.gopanic", "runtime.sigpanic":
		return true
	}
	return false
}

// Entry formats the report written for err.
func Entry(err error) string {
	if c, ok := CallerOf(err); ok {
		return fmt.Sprintf("Error in %s at line %d, column %d:\n%s\n\n", c.File, c.Line, c.Column, err.Error())
	}
	return fmt.Sprintf("Error, cannot get the caller of the error:\n%s\n\n", err.Error())
}

// Logger writes error reports through a Store.
type Logger struct {
	store Store
}

// New returns a Logger writing to store.
func New(store Store) (*Logger, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	return &Logger{store: store}, nil
}

// LogError appends the report for err to error.log, creating it if needed.
// The write error, if any, is returned.
func (l *Logger) LogError(err error) error {
	if err == nil {
		return nil
	}
	entry := Entry(err)
	log.Error(log.CatErrLog, "Error logged", "error", err.Error())

	if werr := l.store.Append(FileName, entry); werr != nil {
		log.ErrorErr(log.CatErrLog, "Failed to write error log", werr)
		return fmt.Errorf("writing %s: %w", FileName, werr)
	}
	return nil
}

// LogAndReturn logs err and hands it back so the caller can propagate it.
func (l *Logger) LogAndReturn(err error) error {
	if werr := l.LogError(err); werr != nil {
		log.Warn(log.CatErrLog, "Error log unavailable", "cause", werr.Error())
	}
	return err
}

// Recover logs a callback panic. It has the channel.PanicHandler shape.
func (l *Logger) Recover(name string, cb *channel.Callback, r any) {
	id := ""
	if cb != nil {
		id = cb.ID
	}
	var err error
	if e, ok := r.(error); ok {
		err = errors.Wrapf(e, "callback %s on %q panicked", id, name)
	} else {
		err = errors.Errorf("callback %s on %q panicked: %v", id, name, r)
	}
	_ = l.LogError(err)
}
