package bus

import (
	"encoding/json"
	"testing"
	"time"

	"dbwarden/internal/checks"
	"dbwarden/internal/scope"
	"dbwarden/internal/storage"
	"dbwarden/internal/threshold"
)

func TestEncode(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := Encode(storage.Change{
		Reference: checks.FreeSpace,
		Scope:     scope.Database(3, 7),
		Mode:      threshold.ModeDisabled,
		Op:        storage.OpUpsert,
		At:        at,
	}, "node-a")
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to parse payload: %v", err)
	}
	for field, want := range map[string]any{
		"reference": "FreeSpace",
		"scope":     "database:3/7",
		"mode":      "disabled",
		"op":        "upsert",
		"at":        "2024-05-01T12:00:00Z",
		"origin":    "node-a",
	} {
		if raw[field] != want {
			t.Errorf("Field %s: expected %v, got %v", field, want, raw[field])
		}
	}
}

func TestDecode(t *testing.T) {
	t.Run("Valid event", func(t *testing.T) {
		e, err := Decode([]byte(`{"reference":"PctMaxSize","scope":"file:1/2/3","mode":"enabled","op":"upsert","origin":"x"}`))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		key, _ := e.Key()
		if key != scope.File(1, 2, 3) || e.Reference != checks.PctMaxSize {
			t.Errorf("Unexpected event %+v", e)
		}
	})

	t.Run("Missing reference", func(t *testing.T) {
		if _, err := Decode([]byte(`{"scope":"root"}`)); err == nil {
			t.Error("Expected error for missing reference")
		}
	})

	t.Run("Bad scope", func(t *testing.T) {
		if _, err := Decode([]byte(`{"reference":"FreeSpace","scope":"database:0/1"}`)); err == nil {
			t.Error("Expected error for invalid scope")
		}
	})

	t.Run("Malformed payload", func(t *testing.T) {
		if _, err := Decode([]byte(`not json`)); err == nil {
			t.Error("Expected error for malformed payload")
		}
	})
}
