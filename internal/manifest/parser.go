package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Parser reads manifests produced by Emitter.
type Parser struct {
	r io.Reader
}

// NewParser creates a new manifest parser.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

// Parse decodes one manifest tree.
func (p *Parser) Parse() (*Node, error) {
	var n Node
	if err := json.NewDecoder(p.r).Decode(&n); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return &n, nil
}

// ReadFile parses dir/map.json.
func ReadFile(dir string) (*Node, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()
	return NewParser(f).Parse()
}
