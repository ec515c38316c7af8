package pkgmeta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Package is one installed front-end package as reported by the lister.
type Package struct {
	Name         string     // e.g., "jquery"
	Version      string     // e.g., "2.1.4"
	Main         []string   // declared entry files, relative to CanonicalDir
	CanonicalDir string     // absolute install directory
	Dependencies []*Package // children in declared order
	Missing      bool       // listed as a dependency but not installed
}

// Label returns "name#version", the form bower uses in its own output.
func (p *Package) Label() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "#" + p.Version
}

// Walk calls fn once for p and every package reachable from it, depth first.
// Packages shared between several parents, or reachable through a loop, are
// visited only the first time.
func (p *Package) Walk(fn func(*Package)) {
	seen := make(map[*Package]bool)
	var visit func(*Package)
	visit = func(pkg *Package) {
		if seen[pkg] {
			return
		}
		seen[pkg] = true
		fn(pkg)
		for _, d := range pkg.Dependencies {
			visit(d)
		}
	}
	visit(p)
}

// FlexString handles YAML/JSON scalars that may be written as numbers.
type FlexString string

// UnmarshalYAML accepts any scalar and keeps its text verbatim.
func (s *FlexString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected scalar, got %s", node.Line, kindName(node.Kind))
	}
	if node.ShortTag() == "!!null" {
		*s = ""
		return nil
	}
	*s = FlexString(node.Value)
	return nil
}

// UnmarshalJSON accepts a string, a number (kept as written) or null.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*s = FlexString(n.String())
		return nil
	}
	return fmt.Errorf("expected string or number, got %s", data)
}

// Main is the "main" field of a package: a bare path, a list of paths, or absent.
type Main []string

// UnmarshalYAML accepts a single path, a list of paths or null.
func (m *Main) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == "!!null" || node.Value == "" {
			*m = nil
			return nil
		}
		*m = Main{node.Value}
		return nil
	case yaml.SequenceNode:
		var files []string
		if err := node.Decode(&files); err != nil {
			return fmt.Errorf("line %d: decoding main: %w", node.Line, err)
		}
		*m = files
		return nil
	default:
		return fmt.Errorf("line %d: main must be a string or a list, got %s", node.Line, kindName(node.Kind))
	}
}

// UnmarshalJSON accepts a single path, a list of paths or null.
func (m *Main) UnmarshalJSON(data []byte) error {
	switch firstByte(data) {
	case 'n':
		*m = nil
		return nil
	case '"':
		var file string
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("decoding main: %w", err)
		}
		if file == "" {
			*m = nil
			return nil
		}
		*m = Main{file}
		return nil
	case '[':
		var files []string
		if err := json.Unmarshal(data, &files); err != nil {
			return fmt.Errorf("decoding main: %w", err)
		}
		*m = files
		return nil
	}
	return fmt.Errorf("main must be a string or a list, got %s", data)
}

type endpoint struct {
	Name string `json:"name" yaml:"name"`
}

type meta struct {
	Name    FlexString `json:"name" yaml:"name"`
	Version FlexString `json:"version" yaml:"version"`
	Main    Main       `json:"main" yaml:"main"`
}

// record mirrors one node of `bower list --json`. Dependencies are walked
// separately so their order and identity survive decoding.
type record struct {
	Endpoint     endpoint     `json:"endpoint" yaml:"endpoint"`
	CanonicalDir string       `json:"canonicalDir" yaml:"canonicalDir"`
	PkgMeta      meta         `json:"pkgMeta" yaml:"pkgMeta"`
	Dependencies dependencies `json:"dependencies" yaml:"-"`
	Missing      bool         `json:"missing" yaml:"missing"`
}

type child struct {
	key string
	rec record
}

// dependencies accepts both bower's object form (keyed by name, order kept)
// and a plain list of records.
type dependencies []child

func (d *dependencies) UnmarshalJSON(data []byte) error {
	switch firstByte(data) {
	case 'n':
		*d = nil
		return nil
	case '[':
		var recs []record
		if err := json.Unmarshal(data, &recs); err != nil {
			return err
		}
		out := make(dependencies, 0, len(recs))
		for _, rec := range recs {
			out = append(out, child{rec: rec})
		}
		*d = out
		return nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return err
		}
		var out dependencies
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := tok.(string)
			var rec record
			if err := dec.Decode(&rec); err != nil {
				return fmt.Errorf("dependency %q: %w", key, err)
			}
			out = append(out, child{key: key, rec: rec})
		}
		*d = out
		return nil
	}
	return fmt.Errorf("dependencies must be an object or a list, got %s", data)
}

// ParseListing decodes a dependency listing, either `bower list --json`
// output or the same structure written as YAML. In YAML an aliased record is
// decoded once and shared, so a self-referencing listing yields a package
// graph with a loop rather than endless recursion.
func ParseListing(r io.Reader) (*Package, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading listing: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("parsing listing: empty input")
	}

	if firstByte(data) == '{' {
		var rec record
		err := json.Unmarshal(data, &rec)
		if err == nil {
			return rec.toPackage(""), nil
		}
		// YAML flow mappings also start with '{'.
		var syntaxErr *json.SyntaxError
		if !errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("parsing listing: %w", err)
		}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}
	root := &doc
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root = doc.Content[0]
	}
	b := &builder{built: make(map[*yaml.Node]*Package)}
	pkg, err := b.record(root, "")
	if err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}
	return pkg, nil
}

func (r record) toPackage(key string) *Package {
	pkg := &Package{
		Name:         string(r.PkgMeta.Name),
		Version:      string(r.PkgMeta.Version),
		Main:         []string(r.PkgMeta.Main),
		CanonicalDir: r.CanonicalDir,
		Missing:      r.Missing,
	}
	pkg.Name = fallbackName(pkg.Name, r.Endpoint.Name, key)
	for _, c := range r.Dependencies {
		pkg.Dependencies = append(pkg.Dependencies, c.rec.toPackage(c.key))
	}
	return pkg
}

// builder turns YAML nodes into packages. Each record node becomes exactly
// one *Package, including nodes reached through aliases.
type builder struct {
	built map[*yaml.Node]*Package
}

func (b *builder) record(node *yaml.Node, key string) (*Package, error) {
	node = deref(node)
	if pkg, ok := b.built[node]; ok {
		return pkg, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: package record must be a mapping, got %s", node.Line, kindName(node.Kind))
	}

	var rec record
	if err := node.Decode(&rec); err != nil {
		return nil, err
	}
	pkg := &Package{
		Name:         fallbackName(string(rec.PkgMeta.Name), rec.Endpoint.Name, key),
		Version:      string(rec.PkgMeta.Version),
		Main:         []string(rec.PkgMeta.Main),
		CanonicalDir: rec.CanonicalDir,
		Missing:      rec.Missing,
	}
	b.built[node] = pkg

	var deps *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "dependencies" {
			deps = deref(node.Content[i+1])
		}
	}
	if deps == nil {
		return pkg, nil
	}

	switch deps.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(deps.Content); i += 2 {
			name := deps.Content[i].Value
			dep, err := b.record(deps.Content[i+1], name)
			if err != nil {
				return nil, fmt.Errorf("dependency %q: %w", name, err)
			}
			pkg.Dependencies = append(pkg.Dependencies, dep)
		}
	case yaml.SequenceNode:
		for _, item := range deps.Content {
			dep, err := b.record(item, "")
			if err != nil {
				return nil, err
			}
			pkg.Dependencies = append(pkg.Dependencies, dep)
		}
	case yaml.ScalarNode:
		if deps.ShortTag() != "!!null" {
			return nil, fmt.Errorf("line %d: dependencies must be a mapping or a list, got scalar", deps.Line)
		}
	default:
		return nil, fmt.Errorf("line %d: dependencies must be a mapping or a list, got %s", deps.Line, kindName(deps.Kind))
	}
	return pkg, nil
}

func deref(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func fallbackName(names ...string) string {
	for _, n := range names {
		if n != "" {
			return n
		}
	}
	return ""
}

func firstByte(data []byte) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
