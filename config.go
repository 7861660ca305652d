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
	"fmt"
	"time"
)

// Config is the flat set of conversion options shared by every processor.
// The mapstructure tags match the keys accepted in config files and RAGPREP_* env vars.
type Config struct {
	ApplyMaxRes           bool `mapstructure:"apply_max_res" json:"apply_max_res"`
	MaxImageResPx         int  `mapstructure:"max_image_res_px" json:"max_image_res_px"`
	ExcludeDecorative     bool `mapstructure:"exclude_decorative" json:"exclude_decorative"`
	DecorativeThresholdPx int  `mapstructure:"decorative_threshold_px" json:"decorative_threshold_px"`
	EmbedSmallImages      bool `mapstructure:"embed_small_images" json:"embed_small_images"`
	SmallImageThresholdKB int  `mapstructure:"small_image_threshold_kb" json:"small_image_threshold_kb"`

	MaxRowsDisplay    int `mapstructure:"max_rows_display" json:"max_rows_display"`
	MaxColumnsDisplay int `mapstructure:"max_columns_display" json:"max_columns_display"`
	// CSVSemicolonBias is added to the detection score of ';' candidates.
	CSVSemicolonBias float64 `mapstructure:"csv_semicolon_bias" json:"csv_semicolon_bias"`

	PandocTOC            bool `mapstructure:"pandoc_toc" json:"pandoc_toc"`
	LimitImageDownload   bool `mapstructure:"limit_image_download" json:"limit_image_download"`
	ImageDownloadTimeout int  `mapstructure:"image_download_timeout" json:"image_download_timeout"`
}

// DefaultConfig returns the configuration used when no option is overridden.
func DefaultConfig() *Config {
	return &Config{
		MaxImageResPx:         1200,
		DecorativeThresholdPx: 50,
		SmallImageThresholdKB: 50,
		MaxRowsDisplay:        1000,
		MaxColumnsDisplay:     50,
		CSVSemicolonBias:      15,
		LimitImageDownload:    true,
		ImageDownloadTimeout:  120,
	}
}

// Validate rejects negative limits.
func (c *Config) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"max_image_res_px", c.MaxImageResPx},
		{"decorative_threshold_px", c.DecorativeThresholdPx},
		{"small_image_threshold_kb", c.SmallImageThresholdKB},
		{"max_rows_display", c.MaxRowsDisplay},
		{"max_columns_display", c.MaxColumnsDisplay},
		{"image_download_timeout", c.ImageDownloadTimeout},
	}
	for _, ch := range checks {
		if ch.value < 0 {
			return fmt.Errorf("config %s must not be negative, got %d", ch.name, ch.value)
		}
	}
	return nil
}

// ImagePolicy extracts the image lifecycle options.
func (c *Config) ImagePolicy() ImagePolicy {
	return ImagePolicy{
		ApplyMaxRes:           c.ApplyMaxRes,
		MaxResPx:              c.MaxImageResPx,
		ExcludeDecorative:     c.ExcludeDecorative,
		DecorativeThresholdPx: c.DecorativeThresholdPx,
		EmbedSmall:            c.EmbedSmallImages,
		SmallThresholdKB:      c.SmallImageThresholdKB,
	}
}

// downloadTimeout is the per-request limit for remote images; zero means none.
func (c *Config) downloadTimeout() time.Duration {
	if !c.LimitImageDownload || c.ImageDownloadTimeout <= 0 {
		return 0
	}
	return time.Duration(c.ImageDownloadTimeout) * time.Second
}
