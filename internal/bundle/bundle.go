package bundle

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/widgetkit/flatdeps/internal/asset"
	"github.com/widgetkit/flatdeps/internal/flatten"
	"github.com/widgetkit/flatdeps/internal/lister"
	"github.com/widgetkit/flatdeps/internal/manifest"
	"github.com/widgetkit/flatdeps/internal/pkgmeta"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageList     Stage = "list"
	StageFlatten  Stage = "flatten"
	StageManifest Stage = "manifest"
	StageMkdir    Stage = "mkdir"
	StageCopy     Stage = "copy"
	StageWrite    Stage = "write"
)

// StageError records which step of a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Options configures a run.
type Options struct {
	OutputDir string // where map.json, js/ and css/ are written
	BasePath  string // prefix of the paths recorded in map.json
	Workers   int    // parallel copies
	Logger    *zap.Logger
}

// Result describes a finished run.
type Result struct {
	Manifest     *manifest.Node
	ManifestPath string
	JS           []string // source files copied to js/
	CSS          []string // source files copied to css/
	Skipped      []string // resolved files that are neither js nor css
	Copy         *asset.Report
}

// Run lists the installed packages, flattens them, writes the manifest and
// copies the assets. The manifest write and the copies run concurrently and
// both must finish before Run returns.
func Run(ctx context.Context, l lister.Lister, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	root, err := l.List(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageList, Err: err}
	}
	log.Info("package listing finished", zap.String("root", root.Label()))
	root.Walk(func(p *pkgmeta.Package) {
		if p.Missing {
			log.Warn("package not installed, its files will be absent", zap.String("package", p.Label()))
		}
	})

	res, err := flatten.Flatten(root)
	if err != nil {
		return nil, &StageError{Stage: StageFlatten, Err: err}
	}

	tree, err := manifest.Build(root, res, opts.BasePath)
	if err != nil {
		return nil, &StageError{Stage: StageManifest, Err: err}
	}

	js, css, skipped := asset.Partition(res.Files())
	for _, f := range skipped {
		log.Debug("skipping file that is neither js nor css", zap.String("file", f))
	}
	log.Info("flattened dependencies",
		zap.Int("js", len(js)),
		zap.Int("css", len(css)),
		zap.Int("skipped", len(skipped)))

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, &StageError{Stage: StageMkdir, Err: err}
	}

	out := &Result{
		Manifest: tree,
		JS:       js,
		CSS:      css,
		Skipped:  skipped,
	}
	m := asset.NewMaterializer(opts.OutputDir, opts.Workers, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := manifest.WriteFile(opts.OutputDir, tree)
		if err != nil {
			return &StageError{Stage: StageWrite, Err: err}
		}
		out.ManifestPath = path
		log.Info("manifest saved", zap.String("path", path))
		return nil
	})
	g.Go(func() error {
		report, err := m.Materialize(gctx, js, css)
		out.Copy = report
		if err != nil {
			if report == nil {
				return &StageError{Stage: StageMkdir, Err: err}
			}
			return &StageError{Stage: StageCopy, Err: err}
		}
		log.Info("assets copied",
			zap.Int("files", report.Copied),
			zap.String("dir", opts.OutputDir))
		return nil
	})
	if err := g.Wait(); err != nil {
		return out, err
	}

	return out, nil
}
