package findings

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleFinding(i int) Finding {
	return Finding{
		ID:         NewID(),
		Plugin:     "ScriptDecoder",
		Type:       TypeEncodedScript,
		Message:    "encoded script",
		Offset:     i,
		Severity:   SeverityMedium,
		DetectedAt: NewTimestamp(time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC)),
	}
}

func readLines(t *testing.T, path string) []Finding {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()
	var out []Finding
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var f Finding
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		out = append(out, f)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return out
}

func TestWriterAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "findings.jsonl")
	w := NewWriter(path, WithSync())

	if err := w.Write(sampleFinding(1)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write(sampleFinding(2)); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := readLines(t, path)
	if len(got) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(got))
	}
	if got[0].Offset != 1 || got[1].Offset != 2 {
		t.Fatalf("unexpected order: %d, %d", got[0].Offset, got[1].Offset)
	}
	if got[0].Version != SchemaVersion {
		t.Fatalf("version = %q", got[0].Version)
	}
}

func TestWriterRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "findings.jsonl")
	w := NewWriter(path, WithMaxBytes(200), WithMaxRotations(2))
	defer w.Close()

	for i := 0; i < 10; i++ {
		if err := w.Write(sampleFinding(i)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	rotated, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(rotated) != 2 {
		t.Fatalf("expected 2 rotated files, got %v", rotated)
	}
	live := readLines(t, path)
	if len(live) != 1 || live[0].Offset != 9 {
		t.Fatalf("live file should hold only the last finding, got %+v", live)
	}
	if prev := readLines(t, path+".1"); len(prev) != 1 || prev[0].Offset != 8 {
		t.Fatalf("path.1 should hold the previous finding, got %+v", prev)
	}
}

func TestWriterRejectsInvalidFinding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.jsonl")
	w := NewWriter(path)
	defer w.Close()

	if err := w.Write(Finding{}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invalid finding should not create the file: %v", err)
	}
}

func TestDefaultPathHonoursEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCRDEC_OUT", dir)
	w := NewWriter("")
	defer w.Close()

	if want := filepath.Join(dir, "findings.jsonl"); w.Path() != want {
		t.Fatalf("path = %q, want %q", w.Path(), want)
	}
	if err := w.Write(sampleFinding(0)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(w.Path()); err != nil {
		t.Fatalf("expected findings file: %v", err)
	}

	t.Setenv("SCRDEC_OUT", "")
	if got := DefaultPath(); got != filepath.Join("out", "findings.jsonl") {
		t.Fatalf("DefaultPath() = %q", got)
	}
}

func BenchmarkWriter(b *testing.B) {
	w := NewWriter(filepath.Join(b.TempDir(), "findings.jsonl"))
	defer w.Close()
	f := sampleFinding(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.ID = NewID()
		if err := w.Write(f); err != nil {
			b.Fatalf("write: %v", err)
		}
	}
}
