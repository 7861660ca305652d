package ragprep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects status and progress callbacks.
type recorder struct {
	mu       sync.Mutex
	statuses []string
	progress []float64
}

func (r *recorder) status(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

func (r *recorder) percent(p float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discardLogger.Out)
	return l
}

func testConverter(rec *recorder, processors ...Processor) *Converter {
	fallback := NewSimpleProcessor()
	all := append(processors, fallback, NewMarkdownProcessor())
	return New(
		WithRegistry(NewRegistry(fallback, nil, all...)),
		WithLogger(quietLogger()),
		WithStatus(rec.status),
		WithProgress(rec.percent),
	)
}

func TestNewJob(t *testing.T) {
	job := NewJob("/in/Quarterly Report.pdf", "/out", "")
	assert.Equal(t, filepath.Join("/out", "Quarterly Report_temp"), job.Scratch)
	assert.Equal(t, filepath.Join("/out", "Quarterly Report_temp", "media"), job.Media)
	assert.Equal(t, "Quarterly Report.md", job.MarkdownName)
	assert.Equal(t, filepath.Join("/out", "Quarterly Report.zip"), job.Archive)

	job = NewJob("/in/a.csv", "/out", "v2")
	assert.Equal(t, "a_v2.md", job.MarkdownName)
	assert.Equal(t, filepath.Join("/out", "a_v2.zip"), job.Archive)
	assert.Equal(t, filepath.Join("/out", "a_v2_temp"), job.Scratch)
}

func TestConvertFilePackagesResult(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	src := writeFile(t, filepath.Join(in, "note.txt"), "hello")
	rec := &recorder{}

	zipPath, err := testConverter(rec).ConvertFile(context.Background(), src, out, "rag")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "note_rag.zip"), zipPath)

	names, contents := zipEntries(t, zipPath)
	assert.Equal(t, []string{"metadata.json", "note_rag.md"}, names)
	assert.Equal(t, "hello", contents["note_rag.md"])
	assert.Contains(t, contents["metadata.json"], `"parser": "txt_simple"`)
	assert.NoDirExists(t, filepath.Join(out, "note_rag_temp"))
}

func TestProcessFileAndPackageMovesNestedMedia(t *testing.T) {
	out := t.TempDir()
	src := writeFile(t, filepath.Join(t.TempDir(), "deck.fake"), "x")
	proc := &stubProcessor{name: "nested", exts: []string{".fake"}, fn: func(req *Request) *Result {
		writeFile(t, filepath.Join(req.MediaDir, "media", "img.png"), "png")
		return succeed("![i](media/img.png)", baseMetadata(req.SourcePath, "nested"))
	}}

	job := NewJob(src, out, "")
	require.NoError(t, testConverter(&recorder{}, proc).ProcessFileAndPackage(context.Background(), job))
	names, _ := zipEntries(t, job.Archive)
	assert.Equal(t, []string{"deck.md", "media/img.png", "metadata.json"}, names)
}

func TestProcessFileAndPackageFailures(t *testing.T) {
	boom := errors.New("parser exploded")
	tests := []struct {
		name    string
		fn      func(req *Request) *Result
		wantErr error
	}{
		{"failed result", func(req *Request) *Result { return failWith(req.SourcePath, "stub", boom) }, boom},
		{"empty markdown", func(req *Request) *Result { return succeed("", Metadata{}) }, ErrEmptyMarkdown},
		{"panic", func(req *Request) *Result { panic("bad slide") }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			src := writeFile(t, filepath.Join(t.TempDir(), "in.stub"), "x")
			rec := &recorder{}
			conv := testConverter(rec, &stubProcessor{name: "stub", exts: []string{".stub"}, fn: tt.fn})

			job := NewJob(src, out, "")
			err := conv.ProcessFileAndPackage(context.Background(), job)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			assert.NoFileExists(t, job.Archive)
			assert.NoDirExists(t, job.Scratch)
		})
	}
}

func TestProcessFileAndPackageReplacesStaleScratch(t *testing.T) {
	out := t.TempDir()
	src := writeFile(t, filepath.Join(t.TempDir(), "doc.txt"), "fresh")
	job := NewJob(src, out, "")
	writeFile(t, filepath.Join(job.Media, "stale.png"), "old")

	require.NoError(t, testConverter(&recorder{}).ProcessFileAndPackage(context.Background(), job))
	names, _ := zipEntries(t, job.Archive)
	assert.NotContains(t, names, "media/stale.png")
}

func TestProcessFolder(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(in, "a.txt"), "alpha")
	writeFile(t, filepath.Join(in, "b.stub"), "beta")
	writeFile(t, filepath.Join(in, "c.md"), "# gamma")
	writeFile(t, filepath.Join(in, "skip.xyz"), "unsupported")
	writeFile(t, filepath.Join(in, "~$a.txt"), "lock file")
	require.NoError(t, os.Mkdir(filepath.Join(in, "sub.txt"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(out, "old_temp"), 0o755))

	rec := &recorder{}
	failing := &stubProcessor{name: "stub", exts: []string{".stub"}, fn: func(req *Request) *Result {
		return failWith(req.SourcePath, "stub", errors.New("no"))
	}}
	res, err := testConverter(rec, failing).ProcessFolder(context.Background(), in, out, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "c.md"}, res.Processed)
	assert.Equal(t, []string{"b.stub"}, res.Failed)
	assert.Equal(t, 3, res.Total())

	assert.Equal(t, []string{
		"Found 3 supported files.",
		"Starting a.txt (1/3)...",
		"Successfully processed a.txt",
		"Starting b.stub (2/3)...",
		"Failed to process b.stub.",
		"Failed to process b.stub",
		"Starting c.md (3/3)...",
		"Successfully processed c.md",
		"Batch processing complete.",
	}, rec.statuses)

	require.Len(t, rec.progress, 3)
	assert.InDelta(t, 33.33, rec.progress[0], 0.01)
	assert.InDelta(t, 66.67, rec.progress[1], 0.01)
	assert.InDelta(t, 100, rec.progress[2], 0.001)

	assert.FileExists(t, filepath.Join(out, "a.zip"))
	assert.FileExists(t, filepath.Join(out, "c.zip"))
	assert.NoFileExists(t, filepath.Join(out, "b.zip"))
	assert.NoFileExists(t, filepath.Join(out, lockFileName))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), scratchSuffix), "leftover %s", e.Name())
	}
}

func TestProcessFolderEmpty(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "nothing.xyz"), "x")
	rec := &recorder{}

	res, err := testConverter(rec).ProcessFolder(context.Background(), in, t.TempDir(), "")
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	assert.Equal(t, []string{"No supported files found."}, rec.statuses)
	assert.Empty(t, rec.progress)
}

func TestProcessFolderLocked(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(in, "a.txt"), "alpha")

	unlock, err := lockOutput(out, discardLogger)
	require.NoError(t, err)
	defer unlock()

	_, err = testConverter(&recorder{}).ProcessFolder(context.Background(), in, out, "")
	assert.ErrorIs(t, err, ErrOutputLocked)
	assert.NoFileExists(t, filepath.Join(out, "a.zip"))
}

func TestLockOutputRelease(t *testing.T) {
	out := t.TempDir()
	conv := testConverter(&recorder{})

	unlock, err := conv.LockOutput(out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, lockFileName))

	_, err = conv.LockOutput(out)
	assert.ErrorIs(t, err, ErrOutputLocked)

	unlock()
	assert.NoFileExists(t, filepath.Join(out, lockFileName))

	again, err := conv.LockOutput(out)
	require.NoError(t, err)
	again()
}

func TestProcessFolderCancelled(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(in, "a.txt"), "alpha")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := testConverter(&recorder{}).ProcessFolder(ctx, in, out, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Total())
}

func TestProcessFolderMissingInput(t *testing.T) {
	_, err := testConverter(&recorder{}).ProcessFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir(), "")
	assert.Error(t, err)
}
