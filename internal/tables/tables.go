// Package tables implements the static encoding tables used by the fingerprint engine.
package tables

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"firestige.xyz/hfinger/internal/core"
)

// Data file names, relative to the table directory.
const (
	HeadersFile     = "headers.yaml"
	ValuesFile      = "values.yaml"
	ContentTypeFile = "content-type.yaml"
	AcceptFile      = "accept.yaml"
	ExtensionsFile  = "extensions.txt"
	MethodsFile     = "methods.txt"
)

//go:embed data
var embedded embed.FS

// Tables holds the immutable lookup data. A Tables value must not be modified after Load.
type Tables struct {
	// Headers maps a lower-case header name to its code.
	Headers map[string]string
	// Values maps a lower-case header name to its value table.
	Values      map[string]map[string]string
	ContentType map[string]string
	Accept      map[string]string
	Extensions  map[string]struct{}
	Methods     map[string]struct{}
}

var loadDefault = sync.OnceValues(func() (*Tables, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
})

// Default returns the embedded tables. The result is shared and loaded once.
func Default() (*Tables, error) {
	return loadDefault()
}

// LoadDir loads tables from dir. Files missing from dir fall back to the embedded copy.
func LoadDir(dir string) (*Tables, error) {
	if dir == "" {
		return Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("tables dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tables dir %s: not a directory", dir)
	}
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return LoadFS(overlayFS{upper: os.DirFS(dir), lower: sub})
}

// LoadFS loads and validates all table files from fsys.
func LoadFS(fsys fs.FS) (*Tables, error) {
	t := &Tables{}

	if err := readYAML(fsys, HeadersFile, &t.Headers); err != nil {
		return nil, err
	}
	if err := readYAML(fsys, ValuesFile, &t.Values); err != nil {
		return nil, err
	}
	if err := readYAML(fsys, ContentTypeFile, &t.ContentType); err != nil {
		return nil, err
	}
	if err := readYAML(fsys, AcceptFile, &t.Accept); err != nil {
		return nil, err
	}

	var err error
	if t.Extensions, err = readSet(fsys, ExtensionsFile, false); err != nil {
		return nil, err
	}
	if t.Methods, err = readSet(fsys, MethodsFile, true); err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// PopularHeaders are the headers whose values are encoded. Each needs a header code.
var PopularHeaders = []string{
	"connection", "accept-encoding", "content-encoding", "cache-control", "te",
	"accept-charset", "content-type", "accept", "accept-language", "user-agent",
}

// Validate checks structural constraints the engine relies on.
func (t *Tables) Validate() error {
	for _, name := range PopularHeaders {
		if _, ok := t.Headers[name]; !ok {
			return fmt.Errorf("%w: no code for value-encoded header %q", core.ErrConfigInvalid, name)
		}
	}
	for name, code := range t.Headers {
		if name != strings.ToLower(name) {
			return fmt.Errorf("%w: header %q is not lower-case", core.ErrConfigInvalid, name)
		}
		if code == "" {
			return fmt.Errorf("%w: header %q has an empty code", core.ErrConfigInvalid, name)
		}
	}
	for header, values := range t.Values {
		if _, ok := t.Headers[header]; !ok {
			return fmt.Errorf("%w: value table for unknown header %q", core.ErrConfigInvalid, header)
		}
		for v, code := range values {
			if code == "" {
				return fmt.Errorf("%w: %s value %q has an empty code", core.ErrConfigInvalid, header, v)
			}
		}
	}
	for m := range t.Methods {
		if m != strings.ToUpper(m) {
			return fmt.Errorf("%w: method %q is not upper-case", core.ErrConfigInvalid, m)
		}
	}
	if len(t.Methods) == 0 {
		return fmt.Errorf("%w: empty method set", core.ErrConfigInvalid)
	}
	return nil
}

// HeaderCode returns the code of a lower-case header name.
func (t *Tables) HeaderCode(lower string) (string, bool) {
	code, ok := t.Headers[lower]
	return code, ok
}

// ValueTable returns the value table bound to a lower-case header name.
func (t *Tables) ValueTable(lower string) map[string]string {
	return t.Values[lower]
}

// IsMethod reports whether an upper-case verb is in the method set.
func (t *Tables) IsMethod(verb string) bool {
	_, ok := t.Methods[verb]
	return ok
}

// HasExtension reports whether ext is in the extension allow-list.
func (t *Tables) HasExtension(ext string) bool {
	_, ok := t.Extensions[ext]
	return ok
}

// Dump is the YAML-friendly view of the tables.
type Dump struct {
	Headers     map[string]string            `yaml:"headers"`
	Values      map[string]map[string]string `yaml:"values"`
	ContentType map[string]string            `yaml:"content_type"`
	Accept      map[string]string            `yaml:"accept"`
	Extensions  []string                     `yaml:"extensions"`
	Methods     []string                     `yaml:"methods"`
}

// Dump returns a sorted snapshot of the tables.
func (t *Tables) Dump() Dump {
	return Dump{
		Headers:     t.Headers,
		Values:      t.Values,
		ContentType: t.ContentType,
		Accept:      t.Accept,
		Extensions:  sortedKeys(t.Extensions),
		Methods:     sortedKeys(t.Methods),
	}
}

func readYAML(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// readSet reads one entry per line. Blank lines and lines starting with '#' are ignored.
func readSet(fsys fs.FS, name string, upper bool) (map[string]struct{}, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	set := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if upper {
			line = strings.ToUpper(line)
		}
		set[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	return set, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// overlayFS serves files from upper and falls back to lower when upper lacks them.
type overlayFS struct {
	upper, lower fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	f, err := o.upper.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return o.lower.Open(name)
	}
	return f, err
}
