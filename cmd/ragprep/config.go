package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ragprep "github.com/nicholasgasior/ragprep-go"
)

// configFlag ties a CLI flag to a config key.
type configFlag struct {
	key   string
	flag  string
	usage string
}

var configFlags = []configFlag{
	{"apply_max_res", "apply-max-res", "downscale images larger than --max-image-res"},
	{"max_image_res_px", "max-image-res", "longest image side in pixels"},
	{"exclude_decorative", "exclude-decorative", "drop images smaller than --decorative-threshold on both sides"},
	{"decorative_threshold_px", "decorative-threshold", "decorative image threshold in pixels"},
	{"embed_small_images", "embed-small-images", "inline images below --small-image-threshold as data URIs"},
	{"small_image_threshold_kb", "small-image-threshold", "embed threshold in KB"},
	{"max_rows_display", "max-rows", "rows rendered per table"},
	{"max_columns_display", "max-columns", "columns rendered per table"},
	{"csv_semicolon_bias", "csv-semicolon-bias", "score bonus for ';' during CSV detection"},
	{"pandoc_toc", "pandoc-toc", "ask pandoc for a table of contents"},
	{"limit_image_download", "limit-image-download", "apply --image-download-timeout to remote images"},
	{"image_download_timeout", "image-download-timeout", "seconds per remote image download"},
}

func bindConfigFlags(cmd *cobra.Command) {
	def := ragprep.DefaultConfig()
	fs := cmd.PersistentFlags()
	fs.Bool("apply-max-res", def.ApplyMaxRes, "")
	fs.Int("max-image-res", def.MaxImageResPx, "")
	fs.Bool("exclude-decorative", def.ExcludeDecorative, "")
	fs.Int("decorative-threshold", def.DecorativeThresholdPx, "")
	fs.Bool("embed-small-images", def.EmbedSmallImages, "")
	fs.Int("small-image-threshold", def.SmallImageThresholdKB, "")
	fs.Int("max-rows", def.MaxRowsDisplay, "")
	fs.Int("max-columns", def.MaxColumnsDisplay, "")
	fs.Float64("csv-semicolon-bias", def.CSVSemicolonBias, "")
	fs.Bool("pandoc-toc", def.PandocTOC, "")
	fs.Bool("limit-image-download", def.LimitImageDownload, "")
	fs.Int("image-download-timeout", def.ImageDownloadTimeout, "")

	for _, cf := range configFlags {
		f := fs.Lookup(cf.flag)
		f.Usage = cf.usage
		_ = viper.BindPFlag(cf.key, f)
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ragprep")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ragprep"))
		}
	}

	viper.SetEnvPrefix("RAGPREP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.WithField("file", viper.ConfigFileUsed()).Info("using config file")
	}
}

// loadConfig merges defaults, config file, environment and flags.
func loadConfig() (*ragprep.Config, error) {
	cfg := ragprep.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newConverter builds a converter wired to the CLI printers.
func newConverter(p *printer) (*ragprep.Converter, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return ragprep.New(
		ragprep.WithConfig(cfg),
		ragprep.WithLogger(logger),
		ragprep.WithStatus(p.Status),
		ragprep.WithProgress(p.Progress),
	), nil
}
