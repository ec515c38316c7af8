package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const indent = "    "

// Emitter writes manifests as indented JSON.
type Emitter struct {
	w io.Writer
}

// NewEmitter creates a new manifest emitter.
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

// Emit writes the manifest tree rooted at n.
func (e *Emitter) Emit(n *Node) error {
	enc := json.NewEncoder(e.w)
	enc.SetIndent("", indent)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(n.normalized()); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return nil
}

// WriteFile writes the manifest to dir/map.json, replacing any previous one.
// Readers never observe a partially written manifest.
func WriteFile(dir string, n *Node) (string, error) {
	path := filepath.Join(dir, FileName)

	out, err := os.CreateTemp(dir, "."+FileName+"-*")
	if err != nil {
		return "", fmt.Errorf("creating manifest: %w", err)
	}
	staged := out.Name()

	err = NewEmitter(out).Emit(n)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(staged, 0644)
	}
	if err != nil {
		os.Remove(staged)
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(staged, path); err != nil {
		os.Remove(staged)
		return "", fmt.Errorf("replacing %s: %w", path, err)
	}
	return path, nil
}

// normalized returns a copy with nil lists replaced by empty ones so they
// encode as [] rather than null.
func (n *Node) normalized() *Node {
	out := &Node{
		Name:         n.Name,
		Version:      n.Version,
		JS:           orEmpty(n.JS),
		CSS:          orEmpty(n.CSS),
		Dependencies: make([]*Node, 0, len(n.Dependencies)),
	}
	for _, d := range n.Dependencies {
		out.Dependencies = append(out.Dependencies, d.normalized())
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
