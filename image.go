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
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/sirupsen/logrus"
)

// ImageAction is what happens to one extracted image.
type ImageAction int

const (
	ActionSave ImageAction = iota
	ActionEmbed
	ActionRemove
)

func (a ImageAction) String() string {
	switch a {
	case ActionEmbed:
		return "embed"
	case ActionRemove:
		return "remove"
	default:
		return "save"
	}
}

// ImageFormat is the encoding used when an image is written or embedded.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "PNG"
	FormatJPEG ImageFormat = "JPEG"
)

// Ext returns the file extension used for the format.
func (f ImageFormat) Ext() string {
	return "." + strings.ToLower(string(f))
}

// ImagePolicy holds the image options of Config.
type ImagePolicy struct {
	ApplyMaxRes           bool
	MaxResPx              int
	ExcludeDecorative     bool
	DecorativeThresholdPx int
	EmbedSmall            bool
	SmallThresholdKB      int
}

// RawImage is an image pulled out of a document before any policy is applied.
// Placeholder is the token the intermediate Markdown references it by.
type RawImage struct {
	Placeholder string
	Data        []byte
	Filename    string
}

// ImageDecision is the outcome of DecideImage.
type ImageDecision struct {
	Action   ImageAction
	Data     []byte
	Format   ImageFormat
	DataURI  string
	Filename string
}

// Target is the reference that replaces the placeholder: the data URI for
// embedded images, media/<filename> for saved ones and "" for removed ones.
func (d ImageDecision) Target() string {
	switch d.Action {
	case ActionEmbed:
		return d.DataURI
	case ActionRemove:
		return ""
	default:
		return "media/" + d.Filename
	}
}

// DecideImage applies policy to data. It never fails: bytes that cannot be
// decoded are saved unchanged as PNG.
func DecideImage(data []byte, filename string, policy ImagePolicy) (d ImageDecision) {
	d = ImageDecision{Action: ActionSave, Data: data, Format: FormatPNG}
	d.Filename = finalImageName(filename, d.Format)
	defer func() {
		if r := recover(); r != nil {
			d = ImageDecision{Action: ActionSave, Data: data, Format: FormatPNG, Filename: finalImageName(filename, FormatPNG)}
		}
	}()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return d
	}

	format := FormatPNG
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		format = FormatJPEG
	}
	d.Format = format
	d.Filename = finalImageName(filename, format)

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if t := policy.DecorativeThresholdPx; policy.ExcludeDecorative && t > 0 && w < t && h < t {
		d.Action = ActionRemove
		d.Data = nil
		return d
	}

	if m := policy.MaxResPx; policy.ApplyMaxRes && m > 0 && (w > m || h > m) {
		img = fitWithin(img, m)
	}

	encoded, err := encodeImage(img, format)
	if err != nil {
		return d
	}
	d.Data = encoded

	if kb := policy.SmallThresholdKB; policy.EmbedSmall && kb > 0 && len(encoded) < kb*1024 {
		d.Action = ActionEmbed
		d.DataURI = fmt.Sprintf("data:image/%s;base64,%s",
			strings.ToLower(string(format)), base64.StdEncoding.EncodeToString(encoded))
	}
	return d
}

func finalImageName(suggestion string, format ImageFormat) string {
	base := path.Base(strings.ReplaceAll(suggestion, `\`, "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." {
		stem = "image"
	}
	return stem + format.Ext()
}

// fitWithin downscales img so neither side exceeds limit, keeping the aspect ratio.
func fitWithin(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := limit, limit
	if w >= h {
		nh = h * limit / w
	} else {
		nw = w * limit / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodeImage(img image.Image, format ImageFormat) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		// JPEG has no alpha channel.
		b := img.Bounds()
		canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Over)
		if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 90}); err != nil {
			return nil, err
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// normalizeImages decides every raw image and writes saved ones into mediaDir.
// The returned map is keyed by placeholder.
func normalizeImages(raws []RawImage, mediaDir string, policy ImagePolicy, log logrus.FieldLogger) (map[string]ImageDecision, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return nil, err
	}
	log.WithField("count", len(raws)).Info("processing extracted images")

	decisions := make(map[string]ImageDecision, len(raws))
	for _, raw := range raws {
		name := raw.Filename
		if name == "" {
			name = filepath.Base(raw.Placeholder)
		}
		d := DecideImage(raw.Data, name, policy)
		switch d.Action {
		case ActionRemove:
			log.WithField("image", name).Info("excluding decorative image")
		case ActionEmbed:
			log.WithField("image", name).Info("embedding small image")
		case ActionSave:
			if err := os.WriteFile(filepath.Join(mediaDir, d.Filename), d.Data, 0o644); err != nil {
				return nil, fmt.Errorf("write image %s: %w", d.Filename, err)
			}
		}
		decisions[raw.Placeholder] = d
	}
	return decisions, nil
}
