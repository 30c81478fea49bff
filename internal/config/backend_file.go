package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "vinq-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "vinq")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "vinq.json")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "vinq", "config.json")
}

// fileBackend is a flat JSON object keyed by dotted config names. Numbers are
// decoded as json.Number so ints and floats keep their written form.
type fileBackend struct {
	path   string
	values map[string]any
}

// newPlatformBackend opens the config file. A missing or unreadable file
// yields an empty backend so defaults and env overrides still apply.
func newPlatformBackend() ConfigBackend {
	b, err := openFileBackend(configFilePath())
	if err != nil {
		slog.Warn("ignoring config file", "path", b.path, "error", err)
	}
	return b
}

func openFileBackend(path string) (*fileBackend, error) {
	b := &fileBackend{path: path, values: map[string]any{}}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return b, fmt.Errorf("reading %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&b.values); err != nil {
		b.values = map[string]any{}
		return b, fmt.Errorf("parsing %s: %w", path, err)
	}
	return b, nil
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", true, fmt.Errorf("%s: expected a string, got %T", key, v)
	}
	return s, true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	n, ok, err := b.number(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.ParseInt(n, 10, strconv.IntSize)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %q is not an integer", key, n)
	}
	return int(i), true, nil
}

func (b *fileBackend) GetFloat(key string) (float64, bool, error) {
	n, ok, err := b.number(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, fmt.Errorf("%s: %q is not a finite number", key, n)
	}
	return f, true, nil
}

// number returns the textual form of a numeric value. Quoted numbers are
// accepted because hand-edited files often contain them.
func (b *fileBackend) number(key string) (string, bool, error) {
	v, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	switch n := v.(type) {
	case json.Number:
		return n.String(), true, nil
	case string:
		return n, true, nil
	default:
		return "", true, fmt.Errorf("%s: expected a number, got %T", key, v)
	}
}

func (b *fileBackend) SetString(key, val string) error {
	return b.set(key, val)
}

func (b *fileBackend) SetInt(key string, val int) error {
	return b.set(key, json.Number(strconv.Itoa(val)))
}

func (b *fileBackend) SetFloat(key string, val float64) error {
	return b.set(key, json.Number(strconv.FormatFloat(val, 'f', -1, 64)))
}

// set stores one value and rewrites the file through a temp file and rename.
func (b *fileBackend) set(key string, val any) error {
	b.values[key] = val

	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}
