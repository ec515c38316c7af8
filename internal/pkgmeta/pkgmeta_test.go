package pkgmeta

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseListing_BowerJSON(t *testing.T) {
	// Arrange: trimmed `bower list --json` output
	input := `{
  "endpoint": {"name": "deform", "source": ".", "target": "*"},
  "canonicalDir": "/src/deform",
  "pkgMeta": {"name": "deform", "version": "2.0.0", "main": "deform.js"},
  "dependencies": {
    "select2": {
      "endpoint": {"name": "select2", "source": "select2", "target": "~3.5.2"},
      "canonicalDir": "/src/deform/bower_components/select2",
      "pkgMeta": {"name": "select2", "version": "3.5.2", "main": ["select2.js", "select2.css"]},
      "dependencies": {
        "jquery": {
          "canonicalDir": "/src/deform/bower_components/jquery",
          "pkgMeta": {"name": "jquery", "version": "2.1.4", "main": "dist/jquery.js"},
          "dependencies": {}
        }
      },
      "nrDependants": 1
    },
    "anotherwidget": {
      "endpoint": {"name": "anotherwidget", "source": "x", "target": "*"},
      "canonicalDir": "/src/deform/bower_components/anotherwidget",
      "pkgMeta": {"name": "anotherwidget", "version": "1.0"},
      "dependencies": {}
    },
    "ghost": {
      "endpoint": {"name": "ghost", "source": "ghost", "target": "*"},
      "missing": true
    }
  }
}`

	// Act
	pkg, err := ParseListing(strings.NewReader(input))

	// Assert
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}

	want := &Package{
		Name:         "deform",
		Version:      "2.0.0",
		Main:         []string{"deform.js"},
		CanonicalDir: "/src/deform",
		Dependencies: []*Package{
			{
				Name:         "select2",
				Version:      "3.5.2",
				Main:         []string{"select2.js", "select2.css"},
				CanonicalDir: "/src/deform/bower_components/select2",
				Dependencies: []*Package{
					{
						Name:         "jquery",
						Version:      "2.1.4",
						Main:         []string{"dist/jquery.js"},
						CanonicalDir: "/src/deform/bower_components/jquery",
					},
				},
			},
			{
				Name:         "anotherwidget",
				Version:      "1.0",
				CanonicalDir: "/src/deform/bower_components/anotherwidget",
			},
			{
				Name:    "ghost",
				Missing: true,
			},
		},
	}
	if diff := cmp.Diff(want, pkg); diff != "" {
		t.Errorf("ParseListing() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseListing_YAMLList(t *testing.T) {
	input := `
pkgMeta:
  name: root
  version: 1.10
dependencies:
  - pkgMeta: {name: b, main: [b.js]}
    canonicalDir: /b
  - pkgMeta: {name: a, main: a.js}
    canonicalDir: /a
`
	pkg, err := ParseListing(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	if pkg.Version != "1.10" {
		t.Errorf("Version = %q, want 1.10 (number kept verbatim)", pkg.Version)
	}
	if len(pkg.Dependencies) != 2 {
		t.Fatalf("got %d dependencies, want 2", len(pkg.Dependencies))
	}
	if pkg.Dependencies[0].Name != "b" || pkg.Dependencies[1].Name != "a" {
		t.Errorf("dependency order = %s, %s; want b, a", pkg.Dependencies[0].Name, pkg.Dependencies[1].Name)
	}
}

func TestParseListing_KeyOrderPreserved(t *testing.T) {
	input := `{"pkgMeta": {"name": "root"}, "dependencies": {
		"zeta": {"pkgMeta": {"name": "zeta"}},
		"alpha": {"pkgMeta": {"name": "alpha"}},
		"mid": {"pkgMeta": {"name": "mid"}}
	}}`
	pkg, err := ParseListing(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	var got []string
	for _, d := range pkg.Dependencies {
		got = append(got, d.Name)
	}
	want := []string{"zeta", "alpha", "mid"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dependency order mismatch (-want +got):\n%s", diff)
	}
}

func TestParseListing_NameFallsBackToKey(t *testing.T) {
	input := `{"pkgMeta": {"name": "root"}, "dependencies": {"unnamed": {"canonicalDir": "/u"}}}`
	pkg, err := ParseListing(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	if got := pkg.Dependencies[0].Name; got != "unnamed" {
		t.Errorf("Name = %q, want unnamed", got)
	}
}

func TestParseListing_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"main is a mapping", `{"pkgMeta": {"main": {"a": "b"}}}`},
		{"dependencies is a scalar", `{"dependencies": "nope"}`},
		{"malformed", `{"pkgMeta": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseListing(strings.NewReader(tt.input)); err == nil {
				t.Error("ParseListing() should return error")
			}
		})
	}
}

func TestMain_NullAndEmpty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"null", `{"pkgMeta": {"name": "x", "main": null}}`},
		{"empty string", `{"pkgMeta": {"name": "x", "main": ""}}`},
		{"absent", `{"pkgMeta": {"name": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := ParseListing(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseListing() error = %v", err)
			}
			if len(pkg.Main) != 0 {
				t.Errorf("Main = %v, want empty", pkg.Main)
			}
		})
	}
}

func TestPackage_Label(t *testing.T) {
	if got := (&Package{Name: "jquery", Version: "2.1.4"}).Label(); got != "jquery#2.1.4" {
		t.Errorf("Label() = %q", got)
	}
	if got := (&Package{Name: "jquery"}).Label(); got != "jquery" {
		t.Errorf("Label() = %q", got)
	}
}

func TestParseListing_JSONEscapes(t *testing.T) {
	longKey := strings.Repeat("k", 1100)
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, pkg *Package)
	}{
		{
			name:  "escaped slashes",
			input: `{"canonicalDir": "\/x\/y", "pkgMeta": {"name": "a", "main": "dist\/a.js"}}`,
			check: func(t *testing.T, pkg *Package) {
				if pkg.CanonicalDir != "/x/y" {
					t.Errorf("CanonicalDir = %q, want /x/y", pkg.CanonicalDir)
				}
				if diff := cmp.Diff([]string{"dist/a.js"}, pkg.Main); diff != "" {
					t.Errorf("Main mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name:  "long dependency key",
			input: `{"pkgMeta": {"name": "root"}, "dependencies": {"` + longKey + `": {"canonicalDir": "/l"}}}`,
			check: func(t *testing.T, pkg *Package) {
				if len(pkg.Dependencies) != 1 || pkg.Dependencies[0].Name != longKey {
					t.Errorf("dependency not decoded under its %d-char key", len(longKey))
				}
			},
		},
		{
			name:  "numeric version",
			input: `{"pkgMeta": {"name": "a", "version": 1.10}}`,
			check: func(t *testing.T, pkg *Package) {
				if pkg.Version != "1.10" {
					t.Errorf("Version = %q, want 1.10", pkg.Version)
				}
			},
		},
		{
			name:  "dependency list",
			input: `{"pkgMeta": {"name": "root"}, "dependencies": [{"pkgMeta": {"name": "b"}}, {"pkgMeta": {"name": "a"}}]}`,
			check: func(t *testing.T, pkg *Package) {
				if len(pkg.Dependencies) != 2 || pkg.Dependencies[0].Name != "b" || pkg.Dependencies[1].Name != "a" {
					t.Errorf("dependencies = %v, want b, a", pkg.Dependencies)
				}
			},
		},
		{
			name:  "yaml flow mapping",
			input: `{pkgMeta: {name: x, main: x.js}}`,
			check: func(t *testing.T, pkg *Package) {
				if pkg.Name != "x" || len(pkg.Main) != 1 {
					t.Errorf("got %s with main %v, want x with [x.js]", pkg.Name, pkg.Main)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := ParseListing(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseListing() error = %v", err)
			}
			tt.check(t, pkg)
		})
	}
}

func TestParseListing_RecursiveAlias(t *testing.T) {
	// Arrange: a record that lists itself as its own dependency
	input := "&r\npkgMeta: {name: a, version: 1.0}\ndependencies: [*r]\n"

	// Act
	pkg, err := ParseListing(strings.NewReader(input))

	// Assert: decoding terminates and the loop is kept as a pointer loop
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	if len(pkg.Dependencies) != 1 {
		t.Fatalf("got %d dependencies, want 1", len(pkg.Dependencies))
	}
	if pkg.Dependencies[0] != pkg {
		t.Error("aliased dependency should be the same *Package as its anchor")
	}
}

func TestParseListing_SharedAlias(t *testing.T) {
	input := `
pkgMeta: {name: root}
dependencies:
  b:
    pkgMeta: {name: b}
    dependencies:
      d: &d
        pkgMeta: {name: d, main: d.js}
        canonicalDir: /d
  c:
    pkgMeta: {name: c}
    dependencies:
      d: *d
`
	pkg, err := ParseListing(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseListing() error = %v", err)
	}
	fromB := pkg.Dependencies[0].Dependencies[0]
	fromC := pkg.Dependencies[1].Dependencies[0]
	if fromB != fromC {
		t.Error("both parents should share one *Package for the aliased record")
	}
	if fromB.Name != "d" || fromB.CanonicalDir != "/d" {
		t.Errorf("shared package = %s at %s, want d at /d", fromB.Name, fromB.CanonicalDir)
	}
}

func TestPackage_Walk(t *testing.T) {
	// Arrange: diamond root -> (b, c) -> d, plus d -> root
	d := &Package{Name: "d"}
	b := &Package{Name: "b", Dependencies: []*Package{d}}
	c := &Package{Name: "c", Dependencies: []*Package{d}}
	root := &Package{Name: "root", Dependencies: []*Package{b, c}}
	d.Dependencies = []*Package{root}

	// Act
	var got []string
	root.Walk(func(p *Package) { got = append(got, p.Name) })

	// Assert
	want := []string{"root", "b", "d", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk() order mismatch (-want +got):\n%s", diff)
	}
}
