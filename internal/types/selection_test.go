package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConnectorSelection_Validate(t *testing.T) {
	tests := []struct {
		name    string
		sel     ConnectorSelection
		wantErr error
	}{
		{name: "priority", sel: Priority("stripe")},
		{name: "empty priority", sel: Priority(), wantErr: ErrEmptySelection},
		{name: "split sums to 100", sel: Split(VolumeSplit{"a", 50}, VolumeSplit{"b", 50})},
		{name: "split sums to 90", sel: Split(VolumeSplit{"a", 50}, VolumeSplit{"b", 40}), wantErr: ErrInvalidSplit},
		{name: "empty split", sel: Split(), wantErr: ErrEmptySelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := (ConnectorSelection{Type: "random"}).Validate(); err == nil {
		t.Errorf("Validate() unknown type error = nil, want error")
	}
}

func TestConnectorSelection_JSON(t *testing.T) {
	tests := []struct {
		sel  ConnectorSelection
		wire string
	}{
		{sel: Priority("stripe", "aci"), wire: `{"type":"priority","data":["stripe","aci"]}`},
		{sel: Split(VolumeSplit{"stripe", 70}, VolumeSplit{"aci", 30}), wire: `{"type":"volume_split","data":[{"connector":"stripe","split":70},{"connector":"aci","split":30}]}`},
	}

	for _, tt := range tests {
		body, err := json.Marshal(tt.sel)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if string(body) != tt.wire {
			t.Errorf("Marshal() = %s, want %s", body, tt.wire)
		}
		var got ConnectorSelection
		if err := json.Unmarshal([]byte(tt.wire), &got); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if diff := cmp.Diff(tt.sel, got); diff != "" {
			t.Errorf("Unmarshal() mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestConnectorSelection_Connectors(t *testing.T) {
	got := Split(VolumeSplit{"stripe", 70}, VolumeSplit{"aci", 30}).Connectors()
	if diff := cmp.Diff([]string{"stripe", "aci"}, got); diff != "" {
		t.Errorf("Connectors() mismatch (-want +got):\n%s", diff)
	}
}

func TestProgramID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewProgramID()

	parsed, err := ParseProgramID(string(id))
	if err != nil {
		t.Fatalf("ParseProgramID(%q) error = %v", id, err)
	}
	if parsed != id {
		t.Errorf("ParseProgramID() = %q, want %q", parsed, id)
	}
	if ts := ProgramIDTime(id); ts.Before(before) {
		t.Errorf("ProgramIDTime() = %v, want after %v", ts, before)
	}
	if _, err := ParseProgramID("not-a-uuid"); err == nil {
		t.Errorf("ParseProgramID(not-a-uuid) error = nil, want error")
	}
	if !ProgramIDTime("bogus").IsZero() {
		t.Errorf("ProgramIDTime(bogus) is not zero")
	}
}

func TestMetadata_Validate(t *testing.T) {
	tooMany := Metadata{}
	for i := 0; i <= MaxMetadataPairs; i++ {
		tooMany[string(rune('a'+i%26))+string(rune('A'+i/26))] = "v"
	}
	long := make([]byte, MaxMetadataKeyLength+1)
	for i := range long {
		long[i] = 'k'
	}

	tests := []struct {
		name    string
		md      Metadata
		wantErr error
	}{
		{name: "nil", md: nil},
		{name: "small", md: Metadata{"tier": "gold"}},
		{name: "too many pairs", md: tooMany, wantErr: ErrTooManyMetadataPairs},
		{name: "key too long", md: Metadata{string(long): "v"}, wantErr: ErrMetadataKeyTooLong},
	}
	for _, tt := range tests {
		if err := tt.md.Validate(); !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: Validate() error = %v, want %v", tt.name, err, tt.wantErr)
		}
	}
}
