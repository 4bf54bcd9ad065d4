package engine

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestLicenseWriterDetects(t *testing.T) {
	var buf bytes.Buffer
	cancelled := false
	lw := newLicenseWriter(&buf, time.Hour, func() { cancelled = true })

	fmt.Fprintln(lw, "FlexNet Licensing error: no license available (-4,132)")

	if !lw.Detected() {
		t.Fatal("license failure not detected")
	}
	if !cancelled {
		t.Fatal("cancel not fired")
	}
	if lw.RetryAt().Before(time.Now().Add(55 * time.Minute)) {
		t.Fatalf("retry_at = %v, want ~1h out", lw.RetryAt())
	}
	if buf.Len() == 0 {
		t.Fatal("data must pass through unchanged")
	}
}

func TestLicenseWriterIgnoresNormalOutput(t *testing.T) {
	var buf bytes.Buffer
	lw := newLicenseWriter(&buf, time.Hour, nil)
	fmt.Fprintln(lw, "solver iteration 12, residual 3.1e-6")
	if lw.Detected() {
		t.Fatal("false positive")
	}
}

func TestCrashWriterDetects(t *testing.T) {
	var buf bytes.Buffer
	cw := newCrashWriter(&buf)
	fmt.Fprintln(cw, "System.OutOfMemoryException was thrown")
	if !cw.Detected() || cw.Signature() != "out of memory" {
		t.Fatalf("detected=%v signature=%q", cw.Detected(), cw.Signature())
	}

	cw2 := newCrashWriter(&buf)
	fmt.Fprintln(cw2, "ERROR: Mesh generation failed at segment 4")
	if cw2.Signature() != "mesh generation failure" {
		t.Fatalf("signature = %q", cw2.Signature())
	}
}

func TestLicenseError(t *testing.T) {
	err := fmt.Errorf("run: %w", &LicenseError{RetryAt: time.Now().Add(time.Hour)})
	if !IsLicenseError(err) {
		t.Fatal("wrapped LicenseError not recognized")
	}
	if IsLicenseError(errors.New("boom")) {
		t.Fatal("plain error misclassified")
	}
}
