package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lysyi3m/replybot/app/blacklist"
	"github.com/lysyi3m/replybot/app/reply"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidSettings(t *testing.T) {
	path := writeSettings(t, `
instructions: "Keep it short"
persona_names:
  - "Jane Doe"
presets:
  - keyword: "price please"
    reply: "Check our website"
  - keyword: "hello"
    reply: "Hello!"
blacklist:
  - user_id: "42"
  - user_name: "Spammer"
`)

	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if s.Instructions != "Keep it short" {
		t.Errorf("Expected instructions 'Keep it short', got '%s'", s.Instructions)
	}
	if len(s.PersonaNames) != 1 || s.PersonaNames[0] != "Jane Doe" {
		t.Errorf("Unexpected persona names %v", s.PersonaNames)
	}
	if len(s.Presets) != 2 || s.Presets[0].Keyword != "price please" {
		t.Errorf("Expected presets in file order, got %v", s.Presets)
	}

	stores, err := s.Stores()
	if err != nil {
		t.Fatal(err)
	}
	if !stores.Blacklist.IsBlocked("42", "") || !stores.Blacklist.IsBlocked("", "spammer") {
		t.Error("Expected blacklist to be seeded")
	}
	if got, ok := stores.Presets.Match("hello"); !ok || got != "Hello!" {
		t.Errorf("Expected preset match 'Hello!', got '%s'", got)
	}
	if stores.Instructions.Get() != "Keep it short" {
		t.Errorf("Expected instructions to be seeded")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatal(err)
	}

	if len(s.Presets) != len(reply.DefaultPresets()) {
		t.Errorf("Expected %d default presets, got %d", len(reply.DefaultPresets()), len(s.Presets))
	}
	if len(s.Blacklist) != 0 {
		t.Errorf("Expected empty blacklist, got %v", s.Blacklist)
	}
}

func TestLoadPresetsKeyHandling(t *testing.T) {
	s, err := Load(writeSettings(t, `instructions: "x"`))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Presets) != len(reply.DefaultPresets()) {
		t.Errorf("Expected defaults when presets key is omitted, got %d", len(s.Presets))
	}

	s, err = Load(writeSettings(t, `presets: []`))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Presets) != 0 {
		t.Errorf("Expected no presets for an explicit empty list, got %d", len(s.Presets))
	}
}

func TestLoadInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{"empty preset reply", "presets:\n  - keyword: \"hi\"\n    reply: \"\"\n", reply.ErrEmptyPreset},
		{"empty blacklist entry", "blacklist:\n  - user_id: \"\"\n", blacklist.ErrEmptyEntry},
		{"blank preset keyword", "presets:\n  - keyword: \"   \"\n    reply: \"Hello\"\n", reply.ErrEmptyPreset},
		{"blank blacklist entry", "blacklist:\n  - user_id: \" \"\n    user_name: \"\\t\"\n", blacklist.ErrEmptyEntry},
		{"malformed YAML", "presets: [", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeSettings(t, tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}
}
