package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Job is a single file copy.
type Job struct {
	Src  string
	Dest string
	Kind Kind
}

// Result is the outcome of a copy job.
type Result struct {
	Job   Job
	Error error
}

// Report summarises a Materialize call.
type Report struct {
	Copied   int
	Shadowed []Job // sources dropped because a later source has the same basename
	Failed   []Result
}

// Materializer copies resolved assets into a flat output tree with a fixed
// number of parallel workers.
type Materializer struct {
	outputDir string
	workers   int
	log       *zap.Logger
}

// NewMaterializer creates a materializer writing below outputDir.
func NewMaterializer(outputDir string, workers int, log *zap.Logger) *Materializer {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Materializer{
		outputDir: outputDir,
		workers:   workers,
		log:       log,
	}
}

// OutputDir returns the directory assets are copied into.
func (m *Materializer) OutputDir() string {
	return m.outputDir
}

// Materialize creates the js/ and css/ folders and copies every file into them.
// All copies are awaited; failures are joined into the returned error.
func (m *Materializer) Materialize(ctx context.Context, js, css []string) (*Report, error) {
	for _, kind := range Kinds {
		if err := m.ensureDir(filepath.Join(m.outputDir, string(kind))); err != nil {
			return nil, err
		}
	}

	jobs, shadowed := m.Plan(js, css)
	for _, j := range shadowed {
		m.log.Warn("basename collision, file will be overwritten",
			zap.String("src", j.Src),
			zap.String("dest", j.Dest))
	}

	report := &Report{Shadowed: shadowed}
	var errs []error
	for _, r := range m.Copy(ctx, jobs) {
		if r.Error != nil {
			report.Failed = append(report.Failed, r)
			errs = append(errs, r.Error)
			continue
		}
		report.Copied++
	}
	return report, errors.Join(errs...)
}

// Plan maps sources to their destinations. When two sources share a
// destination the later one wins and the earlier one is reported as shadowed.
func (m *Materializer) Plan(js, css []string) (jobs []Job, shadowed []Job) {
	byDest := make(map[string]int)
	add := func(kind Kind, files []string) {
		for _, src := range files {
			job := Job{Src: src, Dest: LocalPath(m.outputDir, kind, src), Kind: kind}
			if i, ok := byDest[job.Dest]; ok {
				if jobs[i].Src != src {
					shadowed = append(shadowed, jobs[i])
				}
				jobs[i] = job
				continue
			}
			byDest[job.Dest] = len(jobs)
			jobs = append(jobs, job)
		}
	}
	add(JS, js)
	add(CSS, css)
	return jobs, shadowed
}

// Copy runs the jobs on at most m.workers goroutines and returns one Result
// per job, at the job's index. Once ctx is done the remaining jobs are not
// started and report the context error.
func (m *Materializer) Copy(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	next := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(m.workers, len(jobs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				results[i] = m.run(ctx, jobs[i])
			}
		}()
	}

	for i := range jobs {
		next <- i
	}
	close(next)
	wg.Wait()

	return results
}

func (m *Materializer) run(ctx context.Context, job Job) Result {
	if err := ctx.Err(); err != nil {
		return Result{Job: job, Error: fmt.Errorf("copying %s: %w", job.Src, err)}
	}
	if err := m.copyOne(job); err != nil {
		return Result{Job: job, Error: err}
	}
	m.log.Debug("copied", zap.String("src", job.Src), zap.String("dest", job.Dest))
	return Result{Job: job}
}

// copyOne stages the copy next to its destination so a failed copy never
// leaves a truncated asset behind.
func (m *Materializer) copyOne(job Job) error {
	in, err := os.Open(job.Src)
	if err != nil {
		return fmt.Errorf("copying %s: %w", job.Src, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(job.Dest), "."+filepath.Base(job.Dest)+"-*")
	if err != nil {
		return fmt.Errorf("staging %s: %w", job.Dest, err)
	}
	staged := out.Name()

	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(staged, 0644)
	}
	if err == nil {
		err = os.Rename(staged, job.Dest)
	}
	if err != nil {
		os.Remove(staged)
		return fmt.Errorf("writing %s: %w", job.Dest, err)
	}
	return nil
}

// ensureDir creates dir, treating an existing directory as success.
func (m *Materializer) ensureDir(dir string) error {
	err := os.Mkdir(dir, 0755)
	if err == nil {
		m.log.Info("created directory", zap.String("dir", dir))
		return nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	info, statErr := os.Stat(dir)
	if statErr != nil {
		return fmt.Errorf("creating directory %s: %w", dir, statErr)
	}
	if !info.IsDir() {
		return fmt.Errorf("creating directory %s: exists and is not a directory", dir)
	}
	return nil
}
