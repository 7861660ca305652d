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

package ragprep

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/sirupsen/logrus"
)

const (
	metadataFileName = "metadata.json"
	mediaDirName     = "media"
)

// writeMetadata stores meta as JSON indented by four spaces.
func writeMetadata(path string, meta Metadata) error {
	if meta == nil {
		meta = Metadata{}
	}
	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// mergeNestedMedia folds <dir>/media/media into <dir>/media. Files already in
// the parent win, colliding subfolders are merged, and running it twice is a
// no-op.
func mergeNestedMedia(dir string, log logrus.FieldLogger) {
	media := filepath.Join(dir, mediaDirName)
	nested := filepath.Join(media, mediaDirName)
	if info, err := os.Stat(nested); err != nil || !info.IsDir() {
		return
	}
	log.WithField("dir", nested).Info("found nested media folder, reorganizing")

	mergeDir(nested, media, log)
	if rest, err := os.ReadDir(nested); err == nil && len(rest) == 0 {
		if err := os.Remove(nested); err != nil {
			log.WithError(err).Warn("failed to remove nested media folder")
		}
	}
}

// mergeDir moves the entries of src into dst. Only regular files that
// collide are dropped; a directory is never removed unless it ends up empty.
func mergeDir(src, dst string, log logrus.FieldLogger) {
	entries, err := os.ReadDir(src)
	if err != nil {
		log.WithError(err).WithField("dir", src).Warn("list nested media folder failed")
		return
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		target, err := os.Lstat(to)
		if err != nil {
			if err := os.Rename(from, to); err != nil {
				log.WithError(err).WithField("file", from).Warn("failed to move media file")
			}
			continue
		}
		switch {
		case e.IsDir() && target.IsDir():
			mergeDir(from, to, log)
			if rest, err := os.ReadDir(from); err == nil && len(rest) == 0 {
				os.Remove(from)
			}
		case e.Type().IsRegular() && target.Mode().IsRegular():
			log.WithField("file", e.Name()).Debug("skipping duplicate media file")
			if err := os.Remove(from); err != nil {
				log.WithError(err).WithField("file", from).Warn("failed to remove duplicate")
			}
		default:
			log.WithField("file", from).Warn("media name collides with a different kind of entry, leaving it")
		}
	}
}

// createZipPackage writes the Markdown under mdName, metadata.json and every
// file below mediaDir as media/<rel>. The body must exist and be non-empty.
// On failure no archive is left behind.
func createZipPackage(zipPath, mdPath, mdName, metaPath, mediaDir string, log logrus.FieldLogger) (err error) {
	info, statErr := os.Stat(mdPath)
	switch {
	case errors.Is(statErr, fs.ErrNotExist):
		return &PackagingError{Path: zipPath, Err: ErrMarkdownMissing}
	case statErr != nil:
		return &PackagingError{Path: zipPath, Err: statErr}
	case info.Size() == 0:
		return &PackagingError{Path: zipPath, Err: ErrEmptyMarkdown}
	}

	log.WithField("zip", zipPath).Info("creating ZIP package")
	out, err := os.Create(zipPath)
	if err != nil {
		return &PackagingError{Path: zipPath, Err: err}
	}
	defer func() {
		if err != nil {
			os.Remove(zipPath)
			err = &PackagingError{Path: zipPath, Err: err}
		}
	}()

	zw := zip.NewWriter(out)
	if err := addZipFile(zw, mdPath, mdName); err != nil {
		zw.Close()
		out.Close()
		return err
	}
	if metaPath != "" {
		if _, err := os.Stat(metaPath); err == nil {
			if err := addZipFile(zw, metaPath, metadataFileName); err != nil {
				zw.Close()
				out.Close()
				return err
			}
		}
	}
	count, err := addMediaTree(zw, mediaDir)
	if err != nil {
		zw.Close()
		out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if count > 0 {
		log.WithField("media_files", count).Info("added media files to zip")
	}
	return nil
}

func addMediaTree(zw *zip.Writer, mediaDir string) (int, error) {
	if mediaDir == "" {
		return 0, nil
	}
	if info, err := os.Stat(mediaDir); err != nil || !info.IsDir() {
		return 0, nil
	}
	var files []string
	err := filepath.WalkDir(mediaDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slices.Sort(files)
	for _, p := range files {
		rel, err := filepath.Rel(mediaDir, p)
		if err != nil {
			return 0, err
		}
		if err := addZipFile(zw, p, mediaDirName+"/"+filepath.ToSlash(rel)); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

func addZipFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	return nil
}
