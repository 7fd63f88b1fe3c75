package encoder

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFlacEncodeProducesStream(t *testing.T) {
	enc, err := NewFlac(16000)
	if err != nil {
		t.Fatal(err)
	}

	block := make([]int16, BlockSize)
	for i := range block {
		block[i] = int16(i % 1000)
	}
	if err := enc.EncodeBlock(block); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	data := enc.Bytes()
	if !bytes.HasPrefix(data, []byte("fLaC")) {
		t.Fatalf("output missing flac magic, got %q", data[:4])
	}
	if enc.TotalFrames() != BlockSize {
		t.Fatalf("total frames %d, want %d", enc.TotalFrames(), BlockSize)
	}
}

func TestRecorderDownmixesAndSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.flac")
	r, err := NewRecorder(path, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if r.Format() != "flac" {
		t.Fatalf("format %q, want flac for a .flac path", r.Format())
	}

	// One stereo frame: L=100, R=300 averages to 200.
	r.Write([]byte{100, 0, 0x2c, 0x01}, 2)

	if err := r.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("fLaC")) {
		t.Fatal("saved file is not a flac stream")
	}
}

func TestRecorderWritesWavByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	r, err := NewRecorder(path, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if r.Format() != "wav" {
		t.Fatalf("format %q, want wav for a .wav path", r.Format())
	}

	samples := make([]byte, 16000*2)
	r.Write(samples, 1)

	if err := r.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Contains(data[:12], []byte("WAVE")) {
		t.Fatal("saved file is not a wave stream")
	}
	// Header plus one second of 16-bit mono samples.
	if len(data) < 16000*2 {
		t.Fatalf("wav payload too short: %d bytes", len(data))
	}
}

func TestRecorderIgnoresWritesAfterSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.flac")
	r, err := NewRecorder(path, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Save(); err != nil {
		t.Fatal(err)
	}
	r.Write([]byte{1, 0}, 1) // must not panic
	if err := r.Save(); err == nil {
		t.Fatal("second save succeeded on a closed recorder")
	}
}

func TestRecorderDuration(t *testing.T) {
	r, err := NewRecorder(filepath.Join(t.TempDir(), "out.flac"), 16000)
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]byte, 16000*2) // one second of silence
	r.Write(samples, 1)
	d := r.Duration()
	if d.Seconds() < 0.99 || d.Seconds() > 1.01 {
		t.Fatalf("duration %v, want ~1s", d)
	}
}
