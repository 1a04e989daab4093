package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// includeKey names the files merged underneath a config file.
const includeKey = "$include"

// LoadRaw reads path and its includes into one raw map. Environment
// variables are expanded in every file before parsing. Included files are
// merged in order and the including file is applied last, so it wins.
func LoadRaw(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config path is required")
	}
	var l rawLoader
	return l.load(path)
}

// rawLoader tracks the include chain so cycles are reported with their path.
type rawLoader struct {
	chain []string
}

func (l *rawLoader) load(path string) (map[string]any, error) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return nil, err
	}
	for _, p := range l.chain {
		if p == abs {
			return nil, fmt.Errorf("config include cycle: %s", strings.Join(append(l.chain, abs), " -> "))
		}
	}
	l.chain = append(l.chain, abs)
	defer func() { l.chain = l.chain[:len(l.chain)-1] }()

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument([]byte(expandEnv(string(data))), abs)
	if err != nil {
		return nil, err
	}
	includes, err := popIncludes(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(abs), err)
	}

	out := map[string]any{}
	for _, inc := range includes {
		inc = expandHome(inc)
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(abs), inc)
		}
		sub, err := l.load(inc)
		if err != nil {
			return nil, err
		}
		out = mergeMaps(out, sub)
	}
	return mergeMaps(out, doc), nil
}

// expandEnv substitutes $VAR and ${VAR} but leaves the $include key alone.
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		if "$"+key == includeKey {
			return includeKey
		}
		return os.Getenv(key)
	})
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// parseDocument decodes one file by extension: .json and .json5 through
// json5, .yaml, .yml and extensionless files through yaml. An empty file is
// an empty document.
func parseDocument(data []byte, path string) (map[string]any, error) {
	name := filepath.Base(path)
	var doc map[string]any

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".json5":
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json5.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: expected a single yaml document", name)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported config format %q", name, ext)
	}

	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// popIncludes removes $include from doc and returns its paths. It accepts a
// single string or a list of strings; blank entries are skipped.
func popIncludes(doc map[string]any) ([]string, error) {
	val, ok := doc[includeKey]
	delete(doc, includeKey)
	if !ok || val == nil {
		return nil, nil
	}

	var entries []any
	switch v := val.(type) {
	case string:
		entries = []any{v}
	case []any:
		entries = v
	default:
		return nil, fmt.Errorf("%s must be a path or a list of paths", includeKey)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("%s entries must be strings, got %T", includeKey, e)
		}
		if strings.TrimSpace(s) != "" {
			paths = append(paths, s)
		}
	}
	return paths, nil
}

// mergeMaps deep merges src into dst. Nested maps merge key by key; any
// other value in src replaces the one in dst.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		sub, isMap := v.(map[string]any)
		existing, hasMap := dst[k].(map[string]any)
		if isMap && hasMap {
			dst[k] = mergeMaps(existing, sub)
			continue
		}
		dst[k] = v
	}
	return dst
}

// decodeRawConfig turns a merged raw map into a Config, rejecting unknown
// keys.
func decodeRawConfig(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(payload))
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
