// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

// Package ragprep converts documents into self-contained archives of
// Markdown, metadata.json and extracted media for retrieval pipelines.
package ragprep

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

const (
	scratchSuffix = "_temp"
	lockFileName  = ".ragprep.lock"
)

// Converter processes single files and folders into archives.
type Converter struct {
	registry *Registry
	config   *Config
	logger   *logrus.Logger
	status   StatusFunc
	progress ProgressFunc
}

// New creates a Converter with the given options.
func New(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	if c.config == nil {
		c.config = DefaultConfig()
	}
	if c.logger == nil {
		c.logger = logrus.New()
	}
	if c.registry == nil {
		c.registry = DefaultRegistry()
	}
	return c
}

// Registry returns the processors used for dispatch.
func (c *Converter) Registry() *Registry { return c.registry }

// Config returns the active conversion options.
func (c *Converter) Config() *Config { return c.config }

func (c *Converter) notify(msg string) {
	if c.status != nil {
		c.status(msg)
	}
}

func (c *Converter) reportProgress(pct float64) {
	if c.progress != nil {
		c.progress(pct)
	}
}

// Job names every path of one conversion.
type Job struct {
	Source string
	// Scratch is removed when the job ends.
	Scratch string
	Media   string
	// MarkdownName is the body's name inside the archive.
	MarkdownName string
	Archive      string
}

// NewJob derives the output layout for src: <output>/<base>.zip built in
// <output>/<base>_temp, where base is the file stem plus an optional suffix.
func NewJob(src, output, suffix string) Job {
	name := filepath.Base(src)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if suffix != "" {
		base += "_" + suffix
	}
	scratch := filepath.Join(output, base+scratchSuffix)
	return Job{
		Source:       src,
		Scratch:      scratch,
		Media:        filepath.Join(scratch, mediaDirName),
		MarkdownName: base + ".md",
		Archive:      filepath.Join(output, base+".zip"),
	}
}

// ConvertFile converts src into an archive in output and returns its path.
func (c *Converter) ConvertFile(ctx context.Context, src, output, suffix string) (string, error) {
	if err := os.MkdirAll(output, 0o755); err != nil {
		return "", err
	}
	job := NewJob(src, output, suffix)
	if err := c.ProcessFileAndPackage(ctx, job); err != nil {
		return "", err
	}
	return job.Archive, nil
}

// ProcessFileAndPackage runs one job through conversion and packaging. The
// scratch directory is recreated first and always removed afterwards. A nil
// error means the archive exists.
func (c *Converter) ProcessFileAndPackage(ctx context.Context, job Job) error {
	name := filepath.Base(job.Source)
	log := c.logger.WithField("file", job.Source)

	if !removeAllRetry(job.Scratch, log) {
		return fmt.Errorf("stale scratch directory %s", job.Scratch)
	}
	if err := os.MkdirAll(job.Media, 0o755); err != nil {
		return err
	}
	defer removeAllRetry(job.Scratch, log)

	proc := c.registry.Select(job.Source)
	log = log.WithField("processor", proc.Name())
	res := c.run(ctx, proc, &Request{
		SourcePath: job.Source,
		OutputDir:  job.Scratch,
		MediaDir:   job.Media,
		Config:     c.config,
		Status:     c.status,
		Logger:     log,
	})
	if res.Failed() {
		c.notify(fmt.Sprintf("Failed to process %s.", name))
		if res == nil {
			return errors.New("processor returned no result")
		}
		return res.Err
	}

	mdPath := filepath.Join(job.Scratch, job.MarkdownName)
	if err := os.WriteFile(mdPath, []byte(res.Markdown), 0o644); err != nil {
		log.WithError(err).Error("write markdown failed")
		return err
	}
	metaPath := filepath.Join(job.Scratch, metadataFileName)
	if err := writeMetadata(metaPath, res.Metadata); err != nil {
		log.WithError(err).Error("write metadata failed")
		metaPath = ""
	}
	mergeNestedMedia(filepath.Dir(job.Media), log)

	if err := createZipPackage(job.Archive, mdPath, job.MarkdownName, metaPath, job.Media, log); err != nil {
		log.WithError(err).Error("packaging failed")
		return err
	}
	log.WithField("zip", job.Archive).Info("package created")
	return nil
}

// run calls the processor and turns a panic into a failed result.
func (c *Converter) run(ctx context.Context, p Processor, req *Request) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			req.log().WithField("panic", r).Error("processor panicked")
			res = fail(baseMetadata(req.SourcePath, p.Name()), fmt.Errorf("processor %s panicked: %v", p.Name(), r))
		}
	}()
	return p.Process(ctx, req)
}

// BatchResult lists the file names of a batch by outcome.
type BatchResult struct {
	Processed []string
	Failed    []string
}

// Total is the number of files attempted.
func (b *BatchResult) Total() int { return len(b.Processed) + len(b.Failed) }

// SupportedFiles lists the eligible immediate files of dir, sorted by name.
func (c *Converter) SupportedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if c.registry.Eligible(path) {
			files = append(files, path)
		} else {
			c.logger.WithField("file", e.Name()).Debug("skipping unsupported file")
		}
	}
	slices.Sort(files)
	return files, nil
}

// ProcessFolder converts every eligible file of input into output, one at a
// time. Per-file failures are reported in the result, not as an error.
func (c *Converter) ProcessFolder(ctx context.Context, input, output, suffix string) (*BatchResult, error) {
	c.logger.WithFields(logrus.Fields{"input": input, "output": output, "suffix": suffix}).Info("batch started")
	files, err := c.SupportedFiles(input)
	if err != nil {
		return nil, err
	}
	result := &BatchResult{}
	if len(files) == 0 {
		c.notify("No supported files found.")
		return result, nil
	}
	c.notify(fmt.Sprintf("Found %d supported files.", len(files)))

	if err := os.MkdirAll(output, 0o755); err != nil {
		return nil, err
	}
	unlock, err := c.LockOutput(output)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for i, src := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		name := filepath.Base(src)
		c.notify(fmt.Sprintf("Starting %s (%d/%d)...", name, i+1, len(files)))
		if err := c.ProcessFileAndPackage(ctx, NewJob(src, output, suffix)); err != nil {
			c.logger.WithError(err).WithField("file", name).Warn("file failed")
			result.Failed = append(result.Failed, name)
			c.notify(fmt.Sprintf("Failed to process %s", name))
		} else {
			result.Processed = append(result.Processed, name)
			c.notify(fmt.Sprintf("Successfully processed %s", name))
		}
		c.reportProgress(float64(i+1) / float64(len(files)) * 100)
	}

	c.sweepScratch(output)
	c.notify("Batch processing complete.")
	return result, nil
}

// LockOutput takes the advisory lock of an output folder, failing with
// ErrOutputLocked while another batch or watch session holds it. The returned
// func releases the lock.
func (c *Converter) LockOutput(output string) (func(), error) {
	return lockOutput(output, c.logger)
}

// lockOutput takes the lock on <output>/.ragprep.lock. The lock file is
// unlinked while still held, so no other process can lock the stale inode
// after release.
func lockOutput(output string, log logrus.FieldLogger) (func(), error) {
	fl := flock.New(filepath.Join(output, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output folder: %w", err)
	}
	if !ok {
		return nil, ErrOutputLocked
	}
	return func() {
		if err := os.Remove(fl.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).WithField("path", fl.Path()).Warn("failed to remove lock file")
		}
		if err := fl.Unlock(); err != nil {
			log.WithError(err).WithField("path", fl.Path()).Warn("failed to release output lock")
		}
	}, nil
}

// sweepScratch removes leftover *_temp directories of earlier jobs.
func (c *Converter) sweepScratch(output string) {
	entries, err := os.ReadDir(output)
	if err != nil {
		c.logger.WithError(err).Warn("final cleanup failed")
		return
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), scratchSuffix) {
			removeAllRetry(filepath.Join(output, e.Name()), c.logger)
		}
	}
}
