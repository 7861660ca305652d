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
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

const (
	maxDownloadWorkers = 5
	imageUserAgent     = "ragprep/1.0 (image prefetch)"
	modifiedHTMLSuffix = ".modified.html"
)

// remoteImages is a parsed HTML document and its http(s) <img> sources.
type remoteImages struct {
	doc      *goquery.Document
	elements map[string][]*goquery.Selection
	urls     []string
	refs     int
}

func scanRemoteImages(src string) (*remoteImages, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	ri := &remoteImages{doc: doc, elements: make(map[string][]*goquery.Selection)}
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		u, _ := s.Attr("src")
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return
		}
		if _, seen := ri.elements[u]; !seen {
			ri.urls = append(ri.urls, u)
		}
		ri.elements[u] = append(ri.elements[u], s)
		ri.refs++
	})
	return ri, nil
}

// rewrite points every element of a downloaded URL at its local copy and
// returns the number of elements changed.
func (ri *remoteImages) rewrite(local map[string]string) int {
	n := 0
	for u, target := range local {
		for _, s := range ri.elements[u] {
			s.SetAttr("src", target)
			n++
		}
	}
	return n
}

func (ri *remoteImages) html() (string, error) {
	return ri.doc.Html()
}

// remoteImageName is stable per URL so repeated runs reuse the file.
func remoteImageName(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(u.Path)
	}
	if ext == "" || len(ext) > 5 {
		ext = ".jpg"
	}
	return "ext_img_" + hex.EncodeToString(sum[:])[:12] + ext
}

type imageFetcher struct {
	client   *http.Client
	mediaDir string
	timeout  time.Duration
	log      logrus.FieldLogger
}

// fetchAll downloads urls with at most maxDownloadWorkers requests in flight
// and returns url -> "media/<file>" for every success.
func (f *imageFetcher) fetchAll(ctx context.Context, urls []string) map[string]string {
	out := make(map[string]string, len(urls))
	if len(urls) == 0 {
		return out
	}
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan string)
	)
	workers := min(maxDownloadWorkers, len(urls))
	f.log.WithFields(logrus.Fields{"images": len(urls), "workers": workers}).Info("starting parallel image download")
	for range workers {
		wg.Go(func() {
			for u := range jobs {
				name, err := f.fetch(ctx, u)
				if err != nil {
					f.log.WithError(err).WithField("url", u).Warn("image download failed")
					continue
				}
				mu.Lock()
				out[u] = "media/" + name
				mu.Unlock()
			}
		})
	}
	for _, u := range urls {
		jobs <- u
	}
	close(jobs)
	wg.Wait()
	f.log.WithField("downloaded", fmt.Sprintf("%d/%d", len(out), len(urls))).Info("image download complete")
	return out
}

func (f *imageFetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	name := remoteImageName(rawURL)
	dest := filepath.Join(f.mediaDir, name)
	if _, err := os.Stat(dest); err == nil {
		f.log.WithField("url", rawURL).Debug("using cached image")
		return name, nil
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", imageUserAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("download timeout (>%s)", f.timeout)
		}
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	tmp, err := os.CreateTemp(f.mediaDir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing download: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	f.log.WithFields(logrus.Fields{"url": rawURL, "file": name, "elapsed": time.Since(start).Round(time.Millisecond)}).Info("downloaded image")
	return name, nil
}

// localizeRemoteImages downloads the remote images of an HTML source and
// returns the rewritten document. ok is false when nothing was replaced.
func localizeRemoteImages(ctx context.Context, req *Request, client *http.Client, src string, log logrus.FieldLogger) (string, bool) {
	ri, err := scanRemoteImages(src)
	if err != nil {
		log.WithError(err).Warn("image pre-download skipped")
		return src, false
	}
	if len(ri.urls) == 0 {
		log.Debug("no external images found")
		return src, false
	}
	log.WithFields(logrus.Fields{"images": ri.refs, "unique": len(ri.urls)}).Info("found external images")
	req.notify(fmt.Sprintf("Processing %s... \nFile contains %d external image(s). Processing may take longer than usual.",
		filepath.Base(req.SourcePath), ri.refs))

	if err := os.MkdirAll(req.MediaDir, 0o755); err != nil {
		log.WithError(err).Warn("image pre-download skipped")
		return src, false
	}
	f := &imageFetcher{client: client, mediaDir: req.MediaDir, timeout: req.config().downloadTimeout(), log: log}
	local := f.fetchAll(ctx, ri.urls)
	if ri.rewrite(local) == 0 {
		log.Info("no images were downloaded")
		return src, false
	}
	out, err := ri.html()
	if err != nil {
		log.WithError(err).Warn("serialize modified HTML failed")
		return src, false
	}
	return out, true
}

// prefetchHTMLImages writes a copy of the HTML input with local image paths
// next to the media directory and returns the file to convert. Any failure
// returns the original path.
func prefetchHTMLImages(ctx context.Context, req *Request, client *http.Client, log logrus.FieldLogger) string {
	data, err := os.ReadFile(req.SourcePath)
	if err != nil {
		log.WithError(err).Warn("image pre-download skipped")
		return req.SourcePath
	}
	out, ok := localizeRemoteImages(ctx, req, client, decodeText(data), log)
	if !ok {
		return req.SourcePath
	}
	modified := filepath.Join(filepath.Dir(req.MediaDir), filepath.Base(req.SourcePath)+modifiedHTMLSuffix)
	if err := os.WriteFile(modified, []byte(out), 0o644); err != nil {
		log.WithError(err).Warn("write modified HTML failed")
		return req.SourcePath
	}
	return modified
}
