package asset

import (
	"path"
	"path/filepath"
	"strings"
)

// Kind is the asset type, which is also the name of its output subfolder.
type Kind string

const (
	Unknown Kind = ""
	JS      Kind = "js"
	CSS     Kind = "css"
)

// Kinds lists the asset types in output order.
var Kinds = []Kind{JS, CSS}

// KindOf classifies a file by its extension, ignoring case.
func KindOf(file string) Kind {
	switch strings.ToLower(path.Ext(toSlash(file))) {
	case ".js":
		return JS
	case ".css":
		return CSS
	default:
		return Unknown
	}
}

// Basename returns the last element of a path, accepting both / and \ as separators.
func Basename(file string) string {
	s := toSlash(file)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Destination returns the manifest path of src: <base>/<kind>/<basename>.
func Destination(base string, kind Kind, src string) string {
	return path.Join(toSlash(base), string(kind), Basename(src))
}

// LocalPath returns the on-disk copy target of src below outputDir.
func LocalPath(outputDir string, kind Kind, src string) string {
	return filepath.Join(outputDir, string(kind), Basename(src))
}

// Partition splits files into JS and CSS, keeping order. Other files are returned
// separately so callers can report them.
func Partition(files []string) (js, css, skipped []string) {
	for _, f := range files {
		switch KindOf(f) {
		case JS:
			js = append(js, f)
		case CSS:
			css = append(css, f)
		default:
			skipped = append(skipped, f)
		}
	}
	return js, css, skipped
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
