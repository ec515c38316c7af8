package resource

import (
	"github.com/widgetkit/flatdeps/internal/manifest"
)

// Resources lists the assets a page needs, in inclusion order.
type Resources struct {
	JS  []string `json:"js" yaml:"js"`
	CSS []string `json:"css" yaml:"css"`
}

// Collect returns the js and css needed to render the named widgets. Widgets
// are the root's top-level dependencies; with no names given all of them are
// selected. Dependencies come before the packages that need them and every
// path appears once.
func Collect(root *manifest.Node, widgets ...string) Resources {
	wanted := make(map[string]bool, len(widgets))
	for _, w := range widgets {
		wanted[w] = true
	}

	var js, css []string
	for _, pkg := range root.Dependencies {
		if len(widgets) > 0 && !wanted[pkg.Name] {
			continue
		}
		pjs, pcss := gather(pkg)
		js = append(js, pjs...)
		css = append(css, pcss...)
	}

	return Resources{
		JS:  reverseUnique(js),
		CSS: reverseUnique(css),
	}
}

// gather lists a package's own assets followed by its dependencies', depth first.
func gather(n *manifest.Node) (js, css []string) {
	js = append(js, n.JS...)
	css = append(css, n.CSS...)
	for _, dep := range n.Dependencies {
		djs, dcss := gather(dep)
		js = append(js, djs...)
		css = append(css, dcss...)
	}
	return js, css
}

func reverseUnique(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if seen[items[i]] {
			continue
		}
		seen[items[i]] = true
		out = append(out, items[i])
	}
	return out
}
