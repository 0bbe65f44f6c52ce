package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tiger/interview-assistant/internal/runtime/audio"
)

func writeWAV(t *testing.T, seconds int) string {
	t.Helper()
	pcm := make([]byte, audio.DefaultSampleRate*2*seconds)
	for i := 0; i+1 < len(pcm); i += 2 {
		pcm[i+1] = byte(i % 64)
	}
	path := filepath.Join(t.TempDir(), "sample.wav")
	if err := os.WriteFile(path, audio.EncodeWAV(pcm, audio.DefaultSampleRate), 0o600); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func frameTypes(t *testing.T, out string) map[string]int {
	t.Helper()
	counts := map[string]int{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var frame struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			t.Fatalf("stdout line is not a JSON frame: %q", scanner.Text())
		}
		counts[frame.Type]++
	}
	return counts
}

func TestRunStreamsWAVThroughPipeline(t *testing.T) {
	path := writeWAV(t, 1)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-wav", path, "-chunk", "500ms", "-target", "zh", "-env-file", "does-not-exist.env"}, &stdout, &stderr, time.Now)
	if err != nil {
		t.Fatalf("unexpected run error: %v (stderr=%s)", err, stderr.String())
	}

	counts := frameTypes(t, stdout.String())
	if counts["transcription"] != 2 || counts["translation"] != 2 || counts["answer"] != 2 {
		t.Fatalf("unexpected frame counts: %+v", counts)
	}
	if !strings.Contains(stderr.String(), "processed 2 chunks: completed=2") {
		t.Fatalf("expected outcome summary, got %q", stderr.String())
	}
}

func TestRunSkipsTranslationForTargetLanguage(t *testing.T) {
	path := writeWAV(t, 1)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-wav", path, "-chunk", "1s", "-target", "en", "-env-file", "does-not-exist.env"}, &stdout, &stderr, time.Now); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	counts := frameTypes(t, stdout.String())
	if counts["transcription"] != 1 || counts["translation"] != 0 || counts["answer"] != 1 {
		t.Fatalf("unexpected frame counts: %+v", counts)
	}
}

func TestRunRequiresWAV(t *testing.T) {
	var stderr bytes.Buffer
	if err := run(nil, &bytes.Buffer{}, &stderr, time.Now); err == nil {
		t.Fatalf("expected missing -wav to fail")
	}
	if !strings.Contains(stderr.String(), "usage") {
		t.Fatalf("expected usage on stderr, got %q", stderr.String())
	}

	bad := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(bad, []byte("not a wav"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := run([]string{"-wav", bad}, &bytes.Buffer{}, &bytes.Buffer{}, time.Now); err == nil {
		t.Fatalf("expected invalid wav to fail")
	}
}

func TestRunHelp(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"help"}, &stdout, &bytes.Buffer{}, time.Now); err != nil {
		t.Fatalf("unexpected help error: %v", err)
	}
	if !strings.Contains(stdout.String(), "-wav") {
		t.Fatalf("expected usage text, got %q", stdout.String())
	}
}
