package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	j "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Document formats.
const (
	DocJSON = "json"
	DocYAML = "yaml"
)

// Document is a decoded JSON or YAML file. Objects decode to map[string]any,
// arrays to []any and JSON numbers to json.Number.
type Document struct {
	Name   string
	Format string
	Root   any
}

// ReadDocument decodes the file at path; "-" reads stdin.
func ReadDocument(path string, stdin io.Reader) (*Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	format := detectFormat(path, data)
	root, err := decode(format, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Document{Name: path, Format: format, Root: root}, nil
}

func detectFormat(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DocJSON
	case ".yaml", ".yml":
		return DocYAML
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return DocJSON
	}
	return DocYAML
}

func decode(format string, data []byte) (any, error) {
	var root any
	switch format {
	case DocJSON:
		dec := j.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&root); err != nil {
			return nil, err
		}
		return root, nil
	case DocYAML:
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, err
		}
		return normalizeYAML(root), nil
	}
	return nil, fmt.Errorf("unknown document format %q", format)
}

// normalizeYAML rewrites map[any]any, which yaml.v3 produces for mappings
// with non-string keys, into map[string]any so every object of a document
// has the same type regardless of its source format.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			t[k] = normalizeYAML(vv)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = normalizeYAML(vv)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeYAML(t[i])
		}
		return t
	default:
		return v
	}
}

// WriteDocument encodes root in format.
func WriteDocument(w io.Writer, format string, root any) error {
	switch format {
	case DocJSON:
		b, err := j.MarshalIndent(root, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(b, '\n'))
		return err
	case DocYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(root); err != nil {
			return err
		}
		return enc.Close()
	}
	return errors.New("unknown document format " + format)
}
