// Package krlog provides a simple leveled logger in the style of
// systemd's sd-daemon log-level prefixes. Time/date are intentionally
// not logged; systemd (or any supervisor reading stderr) already
// timestamps lines for us.
package krlog

import (
	"fmt"
	"io"
	"os"
)

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrorWriter io.Writer = os.Stderr
)

var (
	DebugPrefix = "<7>[DEBUG]"
	InfoPrefix  = "<6>[INFO]"
	WarnPrefix  = "<4>[WARNING]"
	ErrPrefix   = "<3>[ERROR]"
	FatalPrefix = "<3>[FATAL]"
)

func init() {
	if lvl, ok := os.LookupEnv("KARL_LOG_LEVEL"); ok {
		SetLevel(lvl)
	}
}

// SetLevel silences every writer below lvl ("debug", "info", "warn", "err"/"fatal").
func SetLevel(lvl string) {
	DebugWriter, InfoWriter, WarnWriter, ErrorWriter = os.Stderr, os.Stderr, os.Stderr, os.Stderr
	switch lvl {
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
		// nothing discarded
	default:
		Warnf("krlog: invalid log level %q", lvl)
	}
}

func Debug(v ...any) {
	if DebugWriter != io.Discard {
		fmt.Fprintln(DebugWriter, append([]any{DebugPrefix}, v...)...)
	}
}

func Info(v ...any) {
	if InfoWriter != io.Discard {
		fmt.Fprintln(InfoWriter, append([]any{InfoPrefix}, v...)...)
	}
}

func Warn(v ...any) {
	if WarnWriter != io.Discard {
		fmt.Fprintln(WarnWriter, append([]any{WarnPrefix}, v...)...)
	}
}

func Error(v ...any) {
	if ErrorWriter != io.Discard {
		fmt.Fprintln(ErrorWriter, append([]any{ErrPrefix}, v...)...)
	}
}

func Fatal(v ...any) {
	fmt.Fprintln(ErrorWriter, append([]any{FatalPrefix}, v...)...)
	os.Exit(1)
}

func Debugf(format string, v ...any) {
	if DebugWriter != io.Discard {
		fmt.Fprintf(DebugWriter, DebugPrefix+" "+format+"\n", v...)
	}
}

func Infof(format string, v ...any) {
	if InfoWriter != io.Discard {
		fmt.Fprintf(InfoWriter, InfoPrefix+" "+format+"\n", v...)
	}
}

func Warnf(format string, v ...any) {
	if WarnWriter != io.Discard {
		fmt.Fprintf(WarnWriter, WarnPrefix+" "+format+"\n", v...)
	}
}

func Errorf(format string, v ...any) {
	if ErrorWriter != io.Discard {
		fmt.Fprintf(ErrorWriter, ErrPrefix+" "+format+"\n", v...)
	}
}

func Fatalf(format string, v ...any) {
	fmt.Fprintf(ErrorWriter, FatalPrefix+" "+format+"\n", v...)
	os.Exit(1)
}
