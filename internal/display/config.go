package display

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DisplayConfig holds configuration for rendered output
type DisplayConfig struct {
	// Visual options
	ColorEnabled bool         `mapstructure:"color_enabled" yaml:"color_enabled"`
	Theme        string       `mapstructure:"theme" yaml:"theme"`
	OutputFormat OutputFormat `mapstructure:"output_format" yaml:"output_format"`

	// Output control
	QuietMode   bool `mapstructure:"quiet" yaml:"quiet"`
	ShowDevices bool `mapstructure:"show_devices" yaml:"show_devices"`

	// Table formatting options
	TableStyle    string `mapstructure:"table_style" yaml:"table_style"`
	MaxTableWidth int    `mapstructure:"max_table_width" yaml:"max_table_width"`

	Writer    io.Writer `mapstructure:"-" yaml:"-"`
	ErrWriter io.Writer `mapstructure:"-" yaml:"-"`
}

// ThemeName represents available color themes
type ThemeName string

const (
	ThemeDark         ThemeName = "dark"
	ThemeLight        ThemeName = "light"
	ThemeHighContrast ThemeName = "high-contrast"
	ThemePlain        ThemeName = "plain"
)

// OutputFormat represents different output format options
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCompact OutputFormat = "compact"
)

// SupportedFormats lists the output formats
func SupportedFormats() []OutputFormat {
	return []OutputFormat{FormatTable, FormatJSON, FormatYAML, FormatCompact}
}

// DefaultDisplayConfig returns a default display configuration
func DefaultDisplayConfig() *DisplayConfig {
	return &DisplayConfig{
		ColorEnabled:  true,
		Theme:         string(ThemeDark),
		OutputFormat:  FormatTable,
		TableStyle:    "default",
		MaxTableWidth: 160,
		Writer:        os.Stdout,
		ErrWriter:     os.Stderr,
	}
}

// Validate validates the display configuration
func (dc *DisplayConfig) Validate() error {
	var errs []error

	validThemes := []string{string(ThemeDark), string(ThemeLight), string(ThemeHighContrast), string(ThemePlain)}
	if !contains(validThemes, dc.Theme) {
		errs = append(errs, fmt.Errorf("invalid theme '%s', must be one of: %s", dc.Theme, strings.Join(validThemes, ", ")))
	}

	validFormats := make([]string, 0, 4)
	for _, f := range SupportedFormats() {
		validFormats = append(validFormats, string(f))
	}
	if !contains(validFormats, string(dc.OutputFormat)) {
		errs = append(errs, fmt.Errorf("invalid output format '%s', must be one of: %s", dc.OutputFormat, strings.Join(validFormats, ", ")))
	}

	if _, ok := tableStyles[dc.TableStyle]; !ok {
		errs = append(errs, fmt.Errorf("invalid table style '%s', must be one of: default, rounded, compact, grid", dc.TableStyle))
	}

	if dc.MaxTableWidth < 40 || dc.MaxTableWidth > 400 {
		errs = append(errs, fmt.Errorf("max table width must be between 40 and 400, got %d", dc.MaxTableWidth))
	}

	if len(errs) > 0 {
		return fmt.Errorf("display configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// SetDefaults sets default values for unspecified configuration options
func (dc *DisplayConfig) SetDefaults() {
	if dc.Theme == "" {
		dc.Theme = string(ThemeDark)
	}
	if dc.OutputFormat == "" {
		dc.OutputFormat = FormatTable
	}
	dc.OutputFormat = OutputFormat(strings.ToLower(string(dc.OutputFormat)))
	if dc.TableStyle == "" {
		dc.TableStyle = "default"
	}
	if dc.MaxTableWidth == 0 {
		dc.MaxTableWidth = 160
	}
	if dc.Writer == nil {
		dc.Writer = os.Stdout
	}
	if dc.ErrWriter == nil {
		dc.ErrWriter = os.Stderr
	}
}

// GetColorTheme returns the ColorTheme based on the theme name
func (dc *DisplayConfig) GetColorTheme() ColorTheme {
	return GetThemeByName(dc.Theme)
}

// IsColorEnabled returns true if colors should be used
func (dc *DisplayConfig) IsColorEnabled() bool {
	return dc.ColorEnabled && !dc.QuietMode
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
