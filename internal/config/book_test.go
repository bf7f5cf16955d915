package config

import (
	"errors"
	"io/fs"
	"testing"
	"time"
)

type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	s, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(s), nil
}

func (m memFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m[path]; !ok {
		return nil, fs.ErrNotExist
	}
	return nil, nil
}

type staticEnv map[string]any

func (e staticEnv) Load() (map[string]any, error) {
	return map[string]any(e), nil
}

const sampleBook = `
[settings]
drain_limit = 4
idle_sleep = "2ms"
cols = 120
prompt_noise = ["Last login", "Welcome to"]

[[connections]]
name = "web"
host = "web.example.com"
port = 2222
username = "deploy"
key_file = "/keys/id_ed25519"

[[connections]]
name = "db"
host = "db.example.com"
username = "admin"
password = "secret"

[[connections]]
name = "shell"
transport = "local"
shell = "/bin/sh"
`

func TestLoadFS_TOML(t *testing.T) {
	book, err := LoadFS(memFS{"/book.toml": sampleBook}, nil, "/book.toml")
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}

	s := book.Settings
	if s.DrainLimit != 4 || s.IdleSleep != 2*time.Millisecond || s.Cols != 120 {
		t.Errorf("settings = %+v", s)
	}
	if s.Rows != 24 {
		t.Errorf("Rows = %d, want default 24", s.Rows)
	}
	if len(s.PromptNoise) != 2 || s.PromptNoise[1] != "Welcome to" {
		t.Errorf("PromptNoise = %v", s.PromptNoise)
	}

	web, err := book.Lookup("web")
	if err != nil {
		t.Fatalf("Lookup(web) error = %v", err)
	}
	if web.Auth != AuthPublicKey || web.Port != 2222 || web.Addr() != "web.example.com:2222" {
		t.Errorf("web = %+v", web)
	}

	db, _ := book.Lookup("db")
	if db.Auth != AuthPassword || db.Port != DefaultSSHPort {
		t.Errorf("db = %+v", db)
	}

	local, _ := book.Lookup("shell")
	if local.Kind() != TransportLocal || local.Shell != "/bin/sh" {
		t.Errorf("shell = %+v", local)
	}

	names := book.Names()
	if len(names) != 3 || names[0] != "db" || names[2] != "web" {
		t.Errorf("Names() = %v", names)
	}

	if _, err := book.Lookup("missing"); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("Lookup(missing) error = %v", err)
	}
}

func TestLoadFS_YAML(t *testing.T) {
	yml := `
settings:
  scrollback: 50
connections:
  - name: box
    host: box.local
    username: me
    password: pw
`
	book, err := LoadFS(memFS{"/book.yaml": yml}, nil, "/book.yaml")
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	if book.Settings.Scrollback != 50 {
		t.Errorf("Scrollback = %d", book.Settings.Scrollback)
	}
	if _, err := book.Lookup("box"); err != nil {
		t.Errorf("Lookup(box) error = %v", err)
	}
}

func TestLoadFS_MissingFileGivesDefaults(t *testing.T) {
	book, err := LoadFS(memFS{}, nil, "/none.toml")
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	def := DefaultSettings()
	if book.Settings.DrainLimit != def.DrainLimit || book.Settings.IdleSleep != def.IdleSleep {
		t.Errorf("settings = %+v, want defaults", book.Settings)
	}
	if len(book.Connections) != 0 {
		t.Errorf("Connections = %v", book.Connections)
	}
}

func TestLoadFS_EnvOverridesFile(t *testing.T) {
	env := staticEnv{
		"settings": map[string]any{
			"drain_limit": int64(7),
			"idle_sleep":  3 * time.Millisecond,
			"log_level":   "DEBUG",
		},
	}
	book, err := LoadFS(memFS{"/book.toml": sampleBook}, env, "/book.toml")
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	if book.Settings.DrainLimit != 7 {
		t.Errorf("DrainLimit = %d, want 7", book.Settings.DrainLimit)
	}
	if book.Settings.IdleSleep != 3*time.Millisecond {
		t.Errorf("IdleSleep = %v", book.Settings.IdleSleep)
	}
	if book.Settings.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", book.Settings.LogLevel)
	}
	if book.Settings.Cols != 120 {
		t.Errorf("Cols = %d, file value should survive", book.Settings.Cols)
	}
}

func TestLoadFS_Invalid(t *testing.T) {
	tests := map[string]string{
		"duplicate name": `
[[connections]]
name = "a"
transport = "local"
[[connections]]
name = "a"
transport = "local"
`,
		"missing name": `
[[connections]]
transport = "local"
`,
		"bad port": `
[[connections]]
name = "a"
host = "h"
username = "u"
port = 70000
`,
		"bad drain": `
[settings]
drain_limit = 0
`,
		"wrong type": `
[settings]
cols = "wide"
`,
		"bad duration": `
[settings]
idle_sleep = "soon"
`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFS(memFS{"/b.toml": doc}, nil, "/b.toml")
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("LoadFS() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadFS_UnsupportedExtension(t *testing.T) {
	if _, err := LoadFS(memFS{}, nil, "/book.ini"); err == nil {
		t.Error("expected error for .ini")
	}
}

func TestDefaultPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != "/xdg/termlink/connections.toml" {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestSettings_Validate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	s := DefaultSettings()
	s.LogLevel = "trace"
	if err := s.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() = %v", err)
	}
}
