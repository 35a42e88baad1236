package logger

import (
	"io"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

var l = stdr.New(log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile))

// New builds a stdr logger writing to w
func New(w io.Writer) logr.Logger {
	return stdr.New(log.New(w, "", log.LstdFlags))
}

// ReplaceLogger swaps the root logger
func ReplaceLogger(logger logr.Logger) {
	l = logger
}

// GetLogger returns a named child of the root logger
func GetLogger(name string) logr.Logger {
	return l.WithName(name)
}

// SetVerbosity sets the global stdr verbosity and returns the previous level
func SetVerbosity(v int) int {
	return stdr.SetVerbosity(v)
}
