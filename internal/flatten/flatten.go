package flatten

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/widgetkit/flatdeps/internal/pkgmeta"
)

// ErrCycle is returned when a package is reached again while still being walked.
var ErrCycle = errors.New("dependency cycle")

type entry struct {
	own []string
	all []string
}

// Result holds the resolved file lists of every package in a tree.
type Result struct {
	root    *pkgmeta.Package
	entries map[*pkgmeta.Package]entry
}

// Flatten resolves every package's main files against its install directory
// and unions them with those of its transitive dependencies.
func Flatten(root *pkgmeta.Package) (*Result, error) {
	if root == nil {
		return nil, fmt.Errorf("flatten: nil package")
	}
	w := &walker{
		entries: make(map[*pkgmeta.Package]entry),
		onStack: make(map[*pkgmeta.Package]bool),
	}
	if _, err := w.walk(root); err != nil {
		return nil, err
	}
	return &Result{root: root, entries: w.entries}, nil
}

// Root returns the package Flatten was called with.
func (r *Result) Root() *pkgmeta.Package {
	return r.root
}

// Own returns the package's own resolved main files.
func (r *Result) Own(pkg *pkgmeta.Package) ([]string, bool) {
	e, ok := r.entries[pkg]
	return e.own, ok
}

// All returns the package's own files unioned with all transitive dependency files.
func (r *Result) All(pkg *pkgmeta.Package) ([]string, bool) {
	e, ok := r.entries[pkg]
	return e.all, ok
}

// Files returns the flattened list of the root package.
func (r *Result) Files() []string {
	return r.entries[r.root].all
}

type walker struct {
	entries map[*pkgmeta.Package]entry
	onStack map[*pkgmeta.Package]bool
	stack   []*pkgmeta.Package
}

func (w *walker) walk(pkg *pkgmeta.Package) ([]string, error) {
	if e, ok := w.entries[pkg]; ok {
		return e.all, nil
	}
	if w.onStack[pkg] {
		return nil, fmt.Errorf("%w: %s", ErrCycle, w.cyclePath(pkg))
	}
	w.onStack[pkg] = true
	w.stack = append(w.stack, pkg)
	defer func() {
		delete(w.onStack, pkg)
		w.stack = w.stack[:len(w.stack)-1]
	}()

	own := Resolve(pkg)
	all := own
	for _, dep := range pkg.Dependencies {
		depAll, err := w.walk(dep)
		if err != nil {
			return nil, err
		}
		all = Union(depAll, all)
	}

	w.entries[pkg] = entry{own: own, all: all}
	return all, nil
}

func (w *walker) cyclePath(pkg *pkgmeta.Package) string {
	var names []string
	for i, p := range w.stack {
		if p == pkg {
			for _, q := range w.stack[i:] {
				names = append(names, q.Label())
			}
			break
		}
	}
	names = append(names, pkg.Label())
	return strings.Join(names, " -> ")
}

// Resolve joins each declared main entry onto the package's install directory.
// Nothing is checked on disk.
func Resolve(pkg *pkgmeta.Package) []string {
	files := make([]string, 0, len(pkg.Main))
	for _, m := range pkg.Main {
		files = append(files, filepath.Join(pkg.CanonicalDir, m))
	}
	return Union(files)
}

// Union concatenates the lists, keeping the first occurrence of each path.
func Union(lists ...[]string) []string {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for _, l := range lists {
		for _, f := range l {
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
