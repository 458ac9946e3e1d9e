package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(zerolog.New(&buf), "ws")
	logger.Info().Msg("connected")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["component"] != "ws" {
		t.Errorf("component = %v, want ws", entry["component"])
	}
	if entry["message"] != "connected" {
		t.Errorf("message = %v, want connected", entry["message"])
	}
}

func TestSessionHook(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		wantKey bool
	}{
		{"with session", WithSessionID(context.Background(), "sess-1"), true},
		{"background", context.Background(), false},
		{"empty session", WithSessionID(context.Background(), ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Hook(SessionHook{})
			logger.Info().Ctx(tt.ctx).Msg("event")

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("failed to parse log: %v", err)
			}
			_, ok := entry["session_id"]
			if ok != tt.wantKey {
				t.Errorf("session_id present = %v, want %v", ok, tt.wantKey)
			}
		})
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "codelesson.log")

	logger, closer, err := New("debug", file)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug().Str("lesson", "html-basics").Msg("loaded")
	closer()

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"lesson":"html-basics"`) {
		t.Errorf("log file = %s", data)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, _, err := New("chatty", ""); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	logger, closer, err := New("", "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closer()
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", logger.GetLevel())
	}
}
