package ragprep

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubProcessor is a Processor whose behaviour is set per test.
type stubProcessor struct {
	name string
	exts []string
	fn   func(req *Request) *Result
}

func (s *stubProcessor) Name() string                  { return s.name }
func (s *stubProcessor) SupportedExtensions() []string { return s.exts }
func (s *stubProcessor) CanProcess(path string) bool   { return canProcess(path, s.exts) }

func (s *stubProcessor) Process(_ context.Context, req *Request) *Result {
	if s.fn == nil {
		return succeed("# "+filepath.Base(req.SourcePath), baseMetadata(req.SourcePath, s.name))
	}
	return s.fn(req)
}

// stubExternal is an ExternalConverter accepting a fixed extension set.
type stubExternal struct {
	stubProcessor
	accepts []string
}

func (s *stubExternal) Supports(path string) bool {
	if isCommonTempFile(path) {
		return false
	}
	for _, ext := range s.accepts {
		if extensionOf(path) == ext {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newRequest(t *testing.T, src string) *Request {
	t.Helper()
	out := t.TempDir()
	return &Request{
		SourcePath: src,
		OutputDir:  out,
		MediaDir:   filepath.Join(out, "media"),
		Config:     DefaultConfig(),
	}
}

// zipEntries returns the sorted names and contents of a zip archive.
func zipEntries(t *testing.T, path string) ([]string, map[string]string) {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	contents := make(map[string]string)
	var names []string
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		names = append(names, f.Name)
		contents[f.Name] = string(data)
	}
	sort.Strings(names)
	return names, contents
}
