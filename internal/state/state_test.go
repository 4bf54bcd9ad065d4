package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTrackerLifecycle(t *testing.T) {
	path := DefaultPath(t.TempDir())
	tr := Load(path)

	tr.MarkStarted("DP0375_sloot1", "abc123def456", "/runs/20260301-120000")
	e := tr.Get("DP0375_sloot1")
	if e == nil || e.Status != StatusInProgress || e.RunID != "abc123def456" {
		t.Fatalf("entry = %+v", e)
	}

	tr.MarkCompleted("DP0375_sloot1", "dgeoflow-2024", 11.48)
	e = tr.Get("DP0375_sloot1")
	if e.Status != StatusCompleted || e.PipeLength != 11.48 || e.Engine != "dgeoflow-2024" {
		t.Fatalf("entry = %+v", e)
	}

	// state survives reload
	tr2 := Load(path)
	if tr2.Count() != 1 {
		t.Fatalf("count after reload = %d", tr2.Count())
	}
	if tr2.Get("DP0375_sloot1").PipeLength != 11.48 {
		t.Fatal("pipe length lost across reload")
	}
}

func TestTrackerMarkFailed(t *testing.T) {
	tr := Load(DefaultPath(t.TempDir()))
	tr.MarkFailed("x", "engine exited: exit status 1")
	e := tr.Get("x")
	if e.Status != StatusFailed || e.Error == "" {
		t.Fatalf("entry = %+v", e)
	}
}

func TestRecoverInterrupted(t *testing.T) {
	path := DefaultPath(t.TempDir())
	tr := Load(path)
	tr.MarkStarted("a", "run1", "")
	tr.MarkCompleted("b", "eng", 5)

	if n := tr.RecoverInterrupted(); n != 1 {
		t.Fatalf("recovered %d, want 1", n)
	}
	if tr.Get("a").Status != StatusInterrupted {
		t.Fatalf("a = %+v", tr.Get("a"))
	}
	if tr.Get("b").Status != StatusCompleted {
		t.Fatalf("b = %+v", tr.Get("b"))
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	tr := Load(path)
	if tr.Count() != 0 {
		t.Fatal("corrupt file must load as empty state")
	}
}

func TestResetAndClear(t *testing.T) {
	path := DefaultPath(t.TempDir())
	tr := Load(path)
	tr.MarkCompleted("a", "eng", 1)
	tr.MarkCompleted("b", "eng", 2)

	tr.Reset("a")
	if tr.Get("a") != nil || tr.Get("b") == nil {
		t.Fatal("reset removed the wrong entry")
	}

	tr.Clear()
	if tr.Count() != 0 {
		t.Fatal("clear left entries")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("clear must delete the state file")
	}
}
