package core

import (
	"testing"
)

func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 5000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

func TestParseJobID(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"0190c7d6-2c9e-7d33-a8a2-2a2b53f0d6b1", false},
		{"", true},
		{"   ", true},
		{"../etc", true},
		{"a/b", true},
		{"..", true},
	}
	for _, tt := range tests {
		_, err := ParseJobID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseJobID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestConfigHashStable(t *testing.T) {
	a := NewConfigHash([]byte("test"), []byte("sim"))
	b := NewConfigHash([]byte("test"), []byte("sim"))
	c := NewConfigHash([]byte("tes"), []byte("tsim"))
	if a != b {
		t.Errorf("expected equal hashes, got %s and %s", a, b)
	}
	if a == c {
		t.Errorf("document boundaries must change the hash")
	}
	if len(a.Short()) != 12 {
		t.Errorf("Short() length = %d", len(a.Short()))
	}
}
