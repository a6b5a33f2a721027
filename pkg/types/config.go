// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ConvertConfig holds settings for the conversion stage.
type ConvertConfig struct {
	// OutputDir mirrors converted Markdown under this directory instead
	// of writing next to each source file. Empty means write alongside.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Workers is the number of concurrent conversions in batch mode.
	// Values below 2 mean sequential.
	Workers int `json:"workers" yaml:"workers"`
}

// EmbedConfig holds settings for attachment embedding.
type EmbedConfig struct {
	// Enable turns on embedding of files referenced by turns.
	Enable bool `json:"enable" yaml:"enable"`

	// FileRoot is the directory searched for referenced files.
	FileRoot string `json:"file_root" yaml:"file_root"`

	// ImageMaxBytes is the largest image inlined as a data URI (default 2 MB).
	ImageMaxBytes int64 `json:"image_max_bytes" yaml:"image_max_bytes"`

	// TextMaxBytes is the largest text or code file inlined as a fence (default 200 KB).
	TextMaxBytes int64 `json:"text_max_bytes" yaml:"text_max_bytes"`

	// AssetsDirName is the subdirectory, next to the output Markdown,
	// that receives copied files (default "assets").
	AssetsDirName string `json:"assets_dir_name" yaml:"assets_dir_name"`
}

// SortKey selects the deterministic ordering for aggregation.
type SortKey string

const (
	// SortByName orders sources by lower-cased base name. This is the
	// default: it survives copying trees around, which mtimes do not.
	SortByName SortKey = "name"

	// SortByModTime orders sources by file modification time.
	SortByModTime SortKey = "mtime"
)

// AggregateConfig holds settings for the aggregation stage.
type AggregateConfig struct {
	// Output is the combined document filename (default "AGGREGATED.md").
	Output string `json:"output" yaml:"output"`

	// Sort selects the source ordering: name or mtime.
	Sort SortKey `json:"sort" yaml:"sort"`

	// Include keeps only sources whose slash-relative path matches this
	// regular expression. Empty matches everything.
	Include string `json:"include,omitempty" yaml:"include,omitempty"`

	// Exclude drops sources whose slash-relative path matches this
	// regular expression.
	Exclude string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// CatalogConfig holds settings for the session catalog.
type CatalogConfig struct {
	// CatalogDir is the base directory for the catalog (contains index/).
	CatalogDir string `json:"catalog_dir" yaml:"catalog_dir"`

	// MaxResults is the default maximum number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// LogConfig holds settings for the rotating run log.
type LogConfig struct {
	// File is the log file path. Empty disables the run log.
	File string `json:"file,omitempty" yaml:"file,omitempty"`

	// MaxSizeMB rotates the log after it reaches this size (default 10).
	MaxSizeMB int `json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files kept (default 3).
	MaxBackups int `json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays removes rotated files older than this (default 28).
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Convert   ConvertConfig   `json:"convert" yaml:"convert"`
	Embed     EmbedConfig     `json:"embed" yaml:"embed"`
	Aggregate AggregateConfig `json:"aggregate" yaml:"aggregate"`
	Catalog   CatalogConfig   `json:"catalog" yaml:"catalog"`
	Log       LogConfig       `json:"log" yaml:"log"`
}
