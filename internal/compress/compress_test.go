package compress

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
)

func TestLooksCompressible(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"notes.txt", true},
		{"data.json", true},
		{"manifest.xml", true},
		{"report.csv", true},
		{"README.md", true},
		{"main.go", true},
		{"noextension", true},
		{"photo.jpg", false},
		{"video.mp4", false},
		{"archive.zip", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := LooksCompressible(tt.path); got != tt.want {
				t.Errorf("LooksCompressible(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestEncode_NotCandidateStaysPlain(t *testing.T) {
	data := []byte(strings.Repeat("x", 1000))
	out, flag, err := Encode(data, false)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if flag != FlagPlain {
		t.Errorf("flag = %d, want FlagPlain", flag)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("Encode() mutated data when not a candidate")
	}
}

func TestEncode_EmptyInputStaysPlain(t *testing.T) {
	out, flag, err := Encode(nil, true)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if flag != FlagPlain || len(out) != 0 {
		t.Errorf("Encode(nil, true) = (%v, %d), want (nil, FlagPlain)", out, flag)
	}
}

func TestEncode_HighlyCompressibleDataIsGzipped(t *testing.T) {
	data := []byte(strings.Repeat("a", 10000))
	out, flag, err := Encode(data, true)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if flag != FlagGzip {
		t.Fatalf("flag = %d, want FlagGzip for highly compressible data", flag)
	}
	if len(out) >= len(data) {
		t.Errorf("gzipped output (%d bytes) is not smaller than input (%d bytes)", len(out), len(data))
	}
}

func TestEncode_IncompressibleDataStaysPlain(t *testing.T) {
	// Pseudo-random bytes that gzip cannot shrink by 5%.
	data := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(data)
	out, flag, err := Encode(data, true)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if flag != FlagPlain {
		t.Errorf("flag = %d, want FlagPlain for incompressible data", flag)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("Encode() returned different bytes for the plain-kept case")
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("roundtrip content ", 500))
	out, flag, err := Encode(data, true)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(out, flag)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(decoded), len(data))
	}
}

func TestDecode_UnknownFlag(t *testing.T) {
	if _, err := Decode([]byte("data"), 0xFF); err == nil {
		t.Fatal("Decode() with unknown flag should error")
	}
}

func TestDecode_PlainPassesThrough(t *testing.T) {
	data := []byte("exactly as given")
	out, err := Decode(data, FlagPlain)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("Decode(FlagPlain) did not pass through unchanged")
	}
}
