package lister

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/widgetkit/flatdeps/internal/pkgmeta"
)

// Lister produces the installed package tree.
type Lister interface {
	List(ctx context.Context) (*pkgmeta.Package, error)
}

// BowerLister runs `bower list --json` in a project directory.
type BowerLister struct {
	command string
	dir     string
	offline bool
}

// NewBowerLister creates a lister running command (usually "bower") in dir.
func NewBowerLister(command, dir string, offline bool) *BowerLister {
	if command == "" {
		command = "bower"
	}
	return &BowerLister{command: command, dir: dir, offline: offline}
}

// Args returns the arguments passed to the bower command.
func (l *BowerLister) Args() []string {
	args := []string{"list", "--json"}
	if l.offline {
		args = append(args, "--offline")
	}
	return args
}

// List runs bower and decodes its output.
func (l *BowerLister) List(ctx context.Context) (*pkgmeta.Package, error) {
	fields := strings.Fields(l.command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("listing packages: empty command")
	}
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], l.Args()...)...)
	cmd.Dir = l.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("running %s: %w: %s", l.command, err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", l.command, err)
	}

	pkg, err := pkgmeta.ParseListing(&stdout)
	if err != nil {
		return nil, fmt.Errorf("reading %s output: %w", l.command, err)
	}
	return pkg, nil
}

// FileLister reads a listing saved from an earlier `bower list --json` run.
type FileLister struct {
	path string
}

// NewFileLister creates a lister reading path.
func NewFileLister(path string) *FileLister {
	return &FileLister{path: path}
}

// List decodes the listing file.
func (l *FileLister) List(ctx context.Context) (*pkgmeta.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("opening listing: %w", err)
	}
	defer f.Close()

	pkg, err := pkgmeta.ParseListing(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}
	return pkg, nil
}
