package rpc

import (
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	req := ProbeRequest{Hashes: []string{"h1", "h2", "h3"}}

	body, err := Encode(42, req)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var got ProbeRequest
	requestID, err := Decode(body, &got)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if requestID != 42 {
		t.Errorf("requestID = %d, want 42", requestID)
	}
	if len(got.Hashes) != 3 || got.Hashes[0] != "h1" {
		t.Errorf("Hashes = %v, want [h1 h2 h3]", got.Hashes)
	}
}

func TestDecodeEnvelope_DoesNotTouchPayload(t *testing.T) {
	body, err := Encode(7, CommitVersionRequest{Path: "a.txt", Action: "created"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	requestID, payload, err := DecodeEnvelope(body)
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	if requestID != 7 {
		t.Errorf("requestID = %d, want 7", requestID)
	}

	var req CommitVersionRequest
	if err := Decode(append([]byte{}, body...), &req); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if req.Path != "a.txt" {
		t.Errorf("Path = %q, want a.txt", req.Path)
	}
	if len(payload) == 0 {
		t.Errorf("DecodeEnvelope() returned empty payload for a non-empty request")
	}
}

func TestDecode_NilTargetSkipsUnmarshal(t *testing.T) {
	body, err := Encode(1, StatsRequest{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	requestID, err := Decode(body, nil)
	if err != nil {
		t.Fatalf("Decode() with nil target error = %v", err)
	}
	if requestID != 1 {
		t.Errorf("requestID = %d, want 1", requestID)
	}
}
