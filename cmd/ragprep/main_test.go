package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragprep "github.com/nicholasgasior/ragprep-go"
)

func TestPrinter(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := newPrinter(&buf)

	p.Status("Processing a.csv...")
	p.Status("Successfully processed a.csv")
	p.Progress(33.333)
	p.Summary(1, 0)

	assert.Equal(t, "Processing a.csv...\nSuccessfully processed a.csv\n[ 33%]\n1 processed, 0 failed\n", buf.String())
}

func TestLoadConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("max_rows_display", 10)
	viper.Set("exclude_decorative", true)
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxRowsDisplay)
	assert.True(t, cfg.ExcludeDecorative)
	assert.Equal(t, 50, cfg.MaxColumnsDisplay)

	viper.Set("max_image_res_px", -1)
	_, err = loadConfig()
	assert.ErrorContains(t, err, "max_image_res_px")
}

func TestBatchCommand(t *testing.T) {
	color.NoColor = true
	t.Cleanup(viper.Reset)

	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("hello"), 0o644))

	rootCmd.SetArgs([]string{"batch", in, out, "--suffix", "rag", "--log-level", "error"})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, filepath.Join(out, "notes_rag.zip"))
}

func TestWatchCommandOutputLocked(t *testing.T) {
	color.NoColor = true
	t.Cleanup(viper.Reset)

	in, out := t.TempDir(), t.TempDir()
	unlock, err := ragprep.New().LockOutput(out)
	require.NoError(t, err)
	defer unlock()

	rootCmd.SetArgs([]string{"watch", in, out, "--log-level", "error"})
	assert.ErrorIs(t, rootCmd.Execute(), ragprep.ErrOutputLocked)
}
