// Package pandoc wraps the pandoc command line tool.
package pandoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

const (
	binPandoc = "pandoc"

	// MediaDirName is the folder, relative to the working directory, that
	// receives extracted media.
	MediaDirName = "media"
	// LogFileName is the pandoc log written next to the output.
	LogFileName = "pandoc_log.txt"
)

// ErrNoOutput is returned when pandoc exits cleanly without writing the output file.
var ErrNoOutput = errors.New("pandoc produced no output file")

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Options describe one conversion to GitHub-flavoured Markdown.
type Options struct {
	// Input is the source document. Relative paths are resolved against Dir.
	Input string
	// Output is the Markdown file name, written inside Dir.
	Output string
	// Dir is the working directory; media lands in Dir/media.
	Dir        string
	TOC        bool
	Standalone bool
}

// Args returns the command line for o.
func (o Options) Args() []string {
	args := []string{
		o.Input,
		"-t", "gfm",
		"-o", o.Output,
		"--wrap=none",
		"--columns=1000",
		"--markdown-headings=atx",
		"--log=" + LogFileName,
		"--extract-media=" + MediaDirName,
	}
	if o.TOC {
		args = append(args, "--toc")
	}
	if o.Standalone {
		args = append(args, "--standalone")
	}
	return args
}

// Tool runs pandoc. Availability is probed once per Tool.
type Tool struct {
	exec executor

	mu      sync.Mutex
	probed  bool
	path    string
	version string
}

// New returns a Tool backed by the real pandoc binary.
func New() *Tool {
	return newTool(osExecutor{})
}

func newTool(e executor) *Tool {
	return &Tool{exec: e}
}

var (
	defaultTool *Tool
	defaultOnce sync.Once
)

// Default returns the process-wide Tool.
func Default() *Tool {
	defaultOnce.Do(func() { defaultTool = New() })
	return defaultTool
}

// probe detects pandoc on first use and returns the cached result.
func (t *Tool) probe() (path, version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.probed {
		return t.path, t.version
	}
	t.probed = true
	found, err := t.exec.LookPath(binPandoc)
	if err != nil {
		return "", ""
	}
	out, err := t.exec.Run(context.Background(), "", found, "--version")
	if err != nil {
		return "", ""
	}
	t.path = found
	t.version = parseVersion(out)
	return t.path, t.version
}

func parseVersion(out []byte) string {
	line, _, _ := bytes.Cut(out, []byte("\n"))
	return strings.TrimSpace(strings.TrimPrefix(string(line), binPandoc))
}

// Available reports whether pandoc is installed and runs.
func (t *Tool) Available() bool {
	path, _ := t.probe()
	return path != ""
}

// Version returns the detected version, or "" when unavailable.
func (t *Tool) Version() string {
	_, v := t.probe()
	return v
}

// Reset forgets the probe result so the next call detects the tool again.
func (t *Tool) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.probed, t.path, t.version = false, "", ""
}

// Convert runs pandoc with o and checks that the output file exists.
func (t *Tool) Convert(ctx context.Context, o Options) error {
	path, _ := t.probe()
	if path == "" {
		return fmt.Errorf("%s: not found on PATH", binPandoc)
	}
	if err := os.MkdirAll(filepath.Join(o.Dir, MediaDirName), 0o755); err != nil {
		return err
	}
	out, err := t.exec.Run(ctx, o.Dir, path, o.Args()...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("running %s: %w", binPandoc, err)
		}
		return fmt.Errorf("running %s: %w: %s", binPandoc, err, msg)
	}
	if _, err := os.Stat(filepath.Join(o.Dir, o.Output)); err != nil {
		return ErrNoOutput
	}
	return nil
}
