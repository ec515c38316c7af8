package manifest

import (
	"fmt"

	"github.com/widgetkit/flatdeps/internal/asset"
	"github.com/widgetkit/flatdeps/internal/flatten"
	"github.com/widgetkit/flatdeps/internal/pkgmeta"
)

// FileName is the manifest's name inside the output directory.
const FileName = "map.json"

// Node describes the assets one package contributes and where they were copied.
type Node struct {
	Name         string   `json:"name" yaml:"name"`
	Version      string   `json:"version" yaml:"version"`
	JS           []string `json:"js" yaml:"js"`
	CSS          []string `json:"css" yaml:"css"`
	Dependencies []*Node  `json:"dependencies" yaml:"dependencies"`
}

// Build mirrors the package tree, listing each package's own assets under basePath.
func Build(root *pkgmeta.Package, res *flatten.Result, basePath string) (*Node, error) {
	own, ok := res.Own(root)
	if !ok {
		return nil, fmt.Errorf("building manifest: package %s was not flattened", root.Label())
	}

	js, css, _ := asset.Partition(own)
	node := &Node{
		Name:         root.Name,
		Version:      root.Version,
		JS:           destinations(basePath, asset.JS, js),
		CSS:          destinations(basePath, asset.CSS, css),
		Dependencies: make([]*Node, 0, len(root.Dependencies)),
	}

	for _, dep := range root.Dependencies {
		child, err := Build(dep, res, basePath)
		if err != nil {
			return nil, err
		}
		node.Dependencies = append(node.Dependencies, child)
	}

	return node, nil
}

func destinations(base string, kind asset.Kind, files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, asset.Destination(base, kind, f))
	}
	return out
}

// Walk calls fn for n and every descendant, depth first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, d := range n.Dependencies {
		d.Walk(fn)
	}
}
