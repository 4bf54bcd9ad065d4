package engine

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// licensePatterns are stderr fragments that mean the console could not
// get a seat from the network license server. Lowercased matching.
var licensePatterns = []string{
	"no license available",
	"could not obtain license",
	"all license seats in use",
	"license server unreachable",
	"license server is not responding",
	"flexnet licensing error",
	"license checkout failed",
}

// licenseWriter wraps an io.Writer (stderr) and scans each write for
// license failure signals. All data passes through unchanged.
type licenseWriter struct {
	file     io.Writer
	cooldown time.Duration
	cancel   func()
	detected bool
	retryAt  time.Time
	mu       sync.Mutex
}

// newLicenseWriter creates a licenseWriter. cancel is fired on first
// detection so the console is not left waiting on the license daemon.
func newLicenseWriter(w io.Writer, cooldown time.Duration, cancel func()) *licenseWriter {
	return &licenseWriter{file: w, cooldown: cooldown, cancel: cancel}
}

func (w *licenseWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)

	if w.Detected() {
		return n, err
	}

	lower := strings.ToLower(string(p))
	for _, pat := range licensePatterns {
		if strings.Contains(lower, pat) {
			w.mu.Lock()
			if !w.detected {
				w.detected = true
				w.retryAt = time.Now().Add(w.cooldown)
			}
			w.mu.Unlock()
			if w.cancel != nil {
				w.cancel()
			}
			break
		}
	}
	return n, err
}

// Detected returns true if a license failure pattern was found.
func (w *licenseWriter) Detected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.detected
}

// RetryAt returns the time after which a seat is worth trying again.
func (w *licenseWriter) RetryAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retryAt
}

// LicenseError signals that at least one scenario could not run because
// no license seat was available. main maps it to exit code 4 so wrapper
// scripts can reschedule the batch.
type LicenseError struct {
	RetryAt time.Time
}

func (e *LicenseError) Error() string {
	if e.RetryAt.IsZero() {
		return "no engine license seat available"
	}
	return "no engine license seat available, retry after " + e.RetryAt.Format(time.Kitchen)
}

// IsLicenseError reports whether err wraps a LicenseError.
func IsLicenseError(err error) bool {
	var le *LicenseError
	return errors.As(err, &le)
}
