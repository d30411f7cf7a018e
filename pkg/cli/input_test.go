package cli

import (
	"os"
	"path/filepath"
	"testing"
)

type prefs struct {
	Voice string  `json:"voice" yaml:"voice"`
	Speed float64 `json:"speed" yaml:"speed"`
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"p.yaml": "voice: nova\nspeed: 1.2\n",
		"p.json": `{"voice":"nova","speed":1.2}`,
		"p.conf": "voice: nova\nspeed: 1.2\n",
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		os.WriteFile(path, []byte(body), 0o644)
		var p prefs
		if err := LoadFile(path, &p); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if p != (prefs{Voice: "nova", Speed: 1.2}) {
			t.Errorf("%s: got %+v", name, p)
		}
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0o644)
	var p prefs
	if err := LoadFile(bad, &p); err == nil {
		t.Error("expected parse error")
	}
	if err := LoadFile(filepath.Join(dir, "missing.yaml"), &p); err == nil {
		t.Error("expected read error")
	}
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	os.WriteFile(path, []byte("RIFF"), 0o644)
	data, err := ReadInput(path)
	if err != nil || string(data) != "RIFF" {
		t.Fatalf("ReadInput = %q, %v", data, err)
	}
}
