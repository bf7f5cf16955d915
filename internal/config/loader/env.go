package loader

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvLoader maps prefixed environment variables onto configuration paths.
type EnvLoader struct {
	prefix  string            // e.g. "TERMLINK_"
	mapping map[string]string // env var -> dotted config path
	lookup  func() []string
}

// NewEnvLoader creates a loader for variables starting with prefix.
// The prefix should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		lookup:  os.Environ,
	}
}

func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "LOG_LEVEL":    "settings.log_level",
		prefix + "LOG_FILE":     "settings.log_file",
		prefix + "DRAIN_LIMIT":  "settings.drain_limit",
		prefix + "IDLE_SLEEP":   "settings.idle_sleep",
		prefix + "READ_BUFFER":  "settings.read_buffer",
		prefix + "COLS":         "settings.cols",
		prefix + "ROWS":         "settings.rows",
		prefix + "SCROLLBACK":   "settings.scrollback",
		prefix + "TERM":         "settings.term_type",
		prefix + "DIAL_TIMEOUT": "settings.dial_timeout",
	}
}

// AddMapping maps an extra variable to a config path.
func (l *EnvLoader) AddMapping(envVar, path string) {
	l.mapping[envVar] = path
}

// Load collects every mapped variable that is set. Prefixed variables
// without a mapping land under settings.<lowercased rest>.
func (l *EnvLoader) Load() (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range l.lookup() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path, mapped := l.mapping[name]
		if !mapped {
			path = "settings." + strings.ToLower(strings.TrimPrefix(name, l.prefix))
		}
		setByPath(out, path, parseValue(value))
	}
	return out, nil
}

// parseValue converts an environment string into an int, bool, duration or
// string, in that order.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return s
}

// setByPath sets a value in a nested map using a dotted path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
