package engine

import (
	"io"
	"strings"
	"sync"
)

// crashPattern maps a stderr fragment to a crash signature.
type crashPattern struct {
	pattern   string
	signature string
}

var crashPatterns = []crashPattern{
	{"unhandled exception", "unhandled exception"},
	{"access violation", "unhandled exception"},
	{"mesh generation failed", "mesh generation failure"},
	{"could not generate mesh", "mesh generation failure"},
	{"out of memory", "out of memory"},
	{"system.outofmemoryexception", "out of memory"},
	{"stack overflow", "stack overflow"},
}

// crashWriter wraps an io.Writer (stderr) and scans for known console
// crash patterns. All data is passed through unchanged.
type crashWriter struct {
	file      io.Writer
	detected  bool
	signature string
	mu        sync.Mutex
}

func newCrashWriter(w io.Writer) *crashWriter {
	return &crashWriter{file: w}
}

func (cw *crashWriter) Write(p []byte) (int, error) {
	n, err := cw.file.Write(p)

	cw.mu.Lock()
	if !cw.detected {
		lower := strings.ToLower(string(p))
		for _, cp := range crashPatterns {
			if strings.Contains(lower, cp.pattern) {
				cw.detected = true
				cw.signature = cp.signature
				break
			}
		}
	}
	cw.mu.Unlock()

	return n, err
}

// Detected returns true if a crash pattern was found in stderr.
func (cw *crashWriter) Detected() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.detected
}

// Signature returns the crash classification.
func (cw *crashWriter) Signature() string {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.signature
}
