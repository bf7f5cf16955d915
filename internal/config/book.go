package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dshills/termlink/internal/config/loader"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TERMLINK_"

// Book is a loaded connection book: engine settings plus named targets.
type Book struct {
	Path        string
	Settings    Settings
	Connections []ConnectionConfig
}

// Lookup returns the connection with the given name.
func (b *Book) Lookup(name string) (ConnectionConfig, error) {
	for _, c := range b.Connections {
		if c.Name == name {
			return c, nil
		}
	}
	return ConnectionConfig{}, fmt.Errorf("%w: %s", ErrConnectionNotFound, name)
}

// Names returns the connection names in sorted order.
func (b *Book) Names() []string {
	names := make([]string, 0, len(b.Connections))
	for _, c := range b.Connections {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// DefaultPath returns $XDG_CONFIG_HOME/termlink/connections.toml, falling
// back to ~/.config.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "connections.toml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "termlink", "connections.toml")
}

// Load reads the book at path from the OS file system and applies
// TERMLINK_* environment overrides. A missing file yields defaults.
func Load(path string) (*Book, error) {
	return LoadFS(loader.DefaultFS(), loader.NewEnvLoader(EnvPrefix), path)
}

// LoadFS is Load with an explicit file system and environment source.
// Precedence: defaults < file < environment.
func LoadFS(fsys loader.FileSystem, env loader.Loader, path string) (*Book, error) {
	fl, err := loader.ForPath(fsys, path)
	if err != nil {
		return nil, err
	}
	data, err := fl.Load()
	if err != nil {
		return nil, err
	}
	if env != nil {
		overrides, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
		data = loader.DeepMerge(data, overrides)
	}

	book, err := decodeBook(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	book.Path = path
	return book, nil
}

func decodeBook(data map[string]any) (*Book, error) {
	book := &Book{Settings: DefaultSettings()}

	if raw, ok := data["settings"]; ok {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, invalid("settings", "must be a table", raw)
		}
		if err := decodeSettings(m, &book.Settings); err != nil {
			return nil, err
		}
	}
	if err := book.Settings.Validate(); err != nil {
		return nil, err
	}

	if raw, ok := data["connections"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, invalid("connections", "must be an array of tables", raw)
		}
		seen := make(map[string]bool, len(list))
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, invalid(fmt.Sprintf("connections[%d]", i), "must be a table", item)
			}
			c, err := decodeConnection(m)
			if err == nil {
				err = c.Validate()
			}
			if err != nil {
				return nil, fmt.Errorf("connections[%d]: %w", i, err)
			}
			if c.Name == "" {
				return nil, invalid(fmt.Sprintf("connections[%d].name", i), "is required", nil)
			}
			if seen[c.Name] {
				return nil, invalid(fmt.Sprintf("connections[%d].name", i), "is duplicated", c.Name)
			}
			seen[c.Name] = true
			book.Connections = append(book.Connections, c)
		}
	}
	return book, nil
}

func decodeSettings(m map[string]any, s *Settings) error {
	d := decoder{section: "settings", m: m}
	d.integer("drain_limit", &s.DrainLimit)
	d.duration("idle_sleep", &s.IdleSleep)
	d.integer("read_buffer", &s.ReadBuffer)
	d.integer("output_queue", &s.OutputQueue)
	d.integer("command_queue", &s.CommandQueue)
	d.integer("cols", &s.Cols)
	d.integer("rows", &s.Rows)
	d.integer("scrollback", &s.Scrollback)
	d.text("term_type", &s.TermType)
	d.duration("dial_timeout", &s.DialTimeout)
	d.text("log_level", &s.LogLevel)
	d.text("log_file", &s.LogFile)
	d.list("prompt_noise", &s.PromptNoise)
	s.LogLevel = strings.ToLower(s.LogLevel)
	return d.err
}

func decodeConnection(m map[string]any) (ConnectionConfig, error) {
	c := ConnectionConfig{Port: DefaultSSHPort}
	d := decoder{section: "connection", m: m}
	var port int
	if d.integer("port", &port) {
		if port < 1 || port > 65535 {
			return c, invalid("port", "out of range", port)
		}
		c.Port = uint16(port)
	}
	var auth, transport string
	d.text("name", &c.Name)
	d.text("host", &c.Host)
	d.text("username", &c.Username)
	d.text("auth", &auth)
	d.text("password", &c.Password)
	d.text("key_file", &c.KeyFile)
	d.text("passphrase", &c.Passphrase)
	d.text("description", &c.Description)
	d.text("transport", &transport)
	d.text("shell", &c.Shell)
	c.Auth = AuthMode(strings.ToLower(auth))
	c.Transport = TransportKind(strings.ToLower(transport))
	if c.Auth == "" && c.KeyFile != "" {
		c.Auth = AuthPublicKey
	} else if c.Auth == "" {
		c.Auth = AuthPassword
	}
	c.KeyFile = expandHome(c.KeyFile)
	return c, d.err
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// decoder pulls typed values out of a loosely typed map, keeping the first error.
type decoder struct {
	section string
	m       map[string]any
	err     error
}

func (d *decoder) fail(key string, want string, v any) {
	if d.err == nil {
		d.err = invalid(d.section+"."+key, "must be "+want, v)
	}
}

func (d *decoder) integer(key string, dst *int) bool {
	v, ok := d.m[key]
	if !ok {
		return false
	}
	switch n := v.(type) {
	case int:
		*dst = n
	case int64:
		*dst = int(n)
	case uint64:
		*dst = int(n)
	case float64:
		if n != float64(int(n)) {
			d.fail(key, "an integer", v)
			return false
		}
		*dst = int(n)
	default:
		d.fail(key, "an integer", v)
		return false
	}
	return true
}

func (d *decoder) text(key string, dst *string) bool {
	v, ok := d.m[key]
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		d.fail(key, "a string", v)
		return false
	}
	*dst = s
	return true
}

func (d *decoder) list(key string, dst *[]string) bool {
	v, ok := d.m[key]
	if !ok {
		return false
	}
	list, ok := v.([]any)
	if !ok {
		d.fail(key, "a list of strings", v)
		return false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			d.fail(key, "a list of strings", v)
			return false
		}
		out = append(out, s)
	}
	*dst = out
	return true
}

// duration accepts "5ms" style strings, time.Duration values from the
// environment loader, or integers as milliseconds.
func (d *decoder) duration(key string, dst *time.Duration) bool {
	v, ok := d.m[key]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case time.Duration:
		*dst = t
	case string:
		parsed, err := time.ParseDuration(t)
		if err != nil {
			d.fail(key, "a duration", v)
			return false
		}
		*dst = parsed
	case int64:
		*dst = time.Duration(t) * time.Millisecond
	case int:
		*dst = time.Duration(t) * time.Millisecond
	default:
		d.fail(key, "a duration", v)
		return false
	}
	return true
}
