package ragprep

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateZipPackage(t *testing.T) {
	dir := t.TempDir()
	md := writeFile(t, filepath.Join(dir, "work", "report.md"), "# Report\n")
	meta := filepath.Join(dir, "work", metadataFileName)
	require.NoError(t, writeMetadata(meta, Metadata{"parser": "stub"}))
	media := filepath.Join(dir, "work", "media")
	writeFile(t, filepath.Join(media, "b.png"), "b")
	writeFile(t, filepath.Join(media, "sub", "a.png"), "a")

	zipPath := filepath.Join(dir, "report.zip")
	require.NoError(t, createZipPackage(zipPath, md, "report.md", meta, media, discardLogger))

	names, contents := zipEntries(t, zipPath)
	assert.Equal(t, []string{"media/b.png", "media/sub/a.png", "metadata.json", "report.md"}, names)
	assert.Equal(t, "# Report\n", contents["report.md"])
	assert.Equal(t, "a", contents["media/sub/a.png"])

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method, f.Name)
	}
}

func TestCreateZipPackageWithoutMedia(t *testing.T) {
	dir := t.TempDir()
	md := writeFile(t, filepath.Join(dir, "doc.md"), "body")
	zipPath := filepath.Join(dir, "doc.zip")

	require.NoError(t, createZipPackage(zipPath, md, "doc.md", "", filepath.Join(dir, "media"), discardLogger))
	names, _ := zipEntries(t, zipPath)
	assert.Equal(t, []string{"doc.md"}, names)
}

func TestCreateZipPackageRefusesBadBody(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, filepath.Join(dir, "empty.md"), "")

	tests := []struct {
		name string
		md   string
		want error
	}{
		{"empty", empty, ErrEmptyMarkdown},
		{"missing", filepath.Join(dir, "absent.md"), ErrMarkdownMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zipPath := filepath.Join(dir, tt.name+".zip")
			err := createZipPackage(zipPath, tt.md, "x.md", "", "", discardLogger)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, IsPackagingError(err))
			assert.NoFileExists(t, zipPath)
		})
	}
}

func TestWriteMetadataIndent(t *testing.T) {
	path := filepath.Join(t.TempDir(), metadataFileName)
	require.NoError(t, writeMetadata(path, Metadata{"parser": "pdf", "page_count": 2}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"page_count\": 2,\n    \"parser\": \"pdf\"\n}", string(data))

	require.NoError(t, writeMetadata(path, nil))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestMergeNestedMedia(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "media", "a.png"), "parent")
	writeFile(t, filepath.Join(dir, "media", "media", "a.png"), "nested")
	writeFile(t, filepath.Join(dir, "media", "media", "b.png"), "moved")

	mergeNestedMedia(dir, discardLogger)

	data, err := os.ReadFile(filepath.Join(dir, "media", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "parent", string(data))
	data, err = os.ReadFile(filepath.Join(dir, "media", "b.png"))
	require.NoError(t, err)
	assert.Equal(t, "moved", string(data))
	assert.NoDirExists(t, filepath.Join(dir, "media", "media"))

	// A second pass finds nothing to do.
	mergeNestedMedia(dir, discardLogger)
	entries, err := os.ReadDir(filepath.Join(dir, "media"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, "a.png,b.png", strings.Join(names, ","))
}

func TestMergeNestedMediaSubfolders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "media", "imgs", "a.png"), "parent")
	writeFile(t, filepath.Join(dir, "media", "media", "imgs", "a.png"), "nested")
	writeFile(t, filepath.Join(dir, "media", "media", "imgs", "b.png"), "unique")
	writeFile(t, filepath.Join(dir, "media", "media", "charts", "c.png"), "moved")

	mergeNestedMedia(dir, discardLogger)

	tests := map[string]string{
		"imgs/a.png":   "parent",
		"imgs/b.png":   "unique",
		"charts/c.png": "moved",
	}
	for rel, want := range tests {
		data, err := os.ReadFile(filepath.Join(dir, "media", filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, want, string(data), rel)
	}
	assert.NoDirExists(t, filepath.Join(dir, "media", "media"))
}

func TestMergeNestedMediaKindMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "media", "imgs"), "a file")
	writeFile(t, filepath.Join(dir, "media", "media", "imgs", "b.png"), "unique")

	mergeNestedMedia(dir, discardLogger)

	assert.FileExists(t, filepath.Join(dir, "media", "media", "imgs", "b.png"))
	assert.FileExists(t, filepath.Join(dir, "media", "imgs"))
}
