package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"restore-chain/internal/chain"
	"restore-chain/internal/manifest"
)

// Renderer writes chains, catalogs and manifests in the configured format
type Renderer struct {
	config DisplayConfig
	colors ColorSystem
}

// NewRenderer validates config and creates a renderer writing to config.Writer
func NewRenderer(config DisplayConfig) (*Renderer, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Renderer{
		config: config,
		colors: NewColorSystem(config.GetColorTheme(), config.IsColorEnabled(), config.Writer),
	}, nil
}

// Format returns the output format
func (r *Renderer) Format() OutputFormat {
	return r.config.OutputFormat
}

// RenderChain writes a resolved chain
func (r *Renderer) RenderChain(view ChainView) error {
	switch r.config.OutputFormat {
	case FormatJSON, FormatYAML:
		return r.encode(view)
	case FormatCompact:
		rows := make([][]string, 0, len(view.Steps))
		for _, step := range view.Steps {
			for _, device := range step.Devices {
				rows = append(rows, []string{fmt.Sprint(step.Position), step.Type, step.FirstLSN, step.LastLSN, device})
			}
		}
		return r.compact([]string{"position", "type", "first_lsn", "last_lsn", "device"}, rows)
	}

	w := r.config.Writer
	theme := r.colors.Theme()
	fmt.Fprintf(w, "%s %s\n", r.colors.Colorize("Restore chain for", theme.Primary), r.colors.Colorize(view.Database, theme.Highlight))
	fmt.Fprintf(w, "Last LSN: %s", view.LastLSN)
	if view.AppliedLSN != "" {
		fmt.Fprintf(w, "  (already applied up to %s)", view.AppliedLSN)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	table := r.newTable()
	table.SetHeaders([]string{"#", "Type", "First LSN", "Last LSN", "Checkpoint LSN", "Base LSN", "Started", "Stripes", "Device"})
	table.SetColumnAlignment(0, AlignRight)
	table.SetColumnAlignment(7, AlignRight)
	for _, step := range view.Steps {
		row := []string{
			fmt.Sprint(step.Position),
			step.Type,
			step.FirstLSN,
			step.LastLSN,
			step.CheckpointLSN,
			step.DatabaseBackupLSN,
			formatTime(step.StartTime),
			fmt.Sprint(len(step.Devices)),
			firstOrEmpty(step.Devices),
		}
		table.AddColoredRow(row, r.typeColor(step.Type))

		if r.config.ShowDevices {
			for _, device := range step.Devices[min(1, len(step.Devices)):] {
				table.AddRow([]string{"", "", "", "", "", "", "", "", device})
			}
		}
	}
	table.RenderTo(w)

	s := view.Stats
	fmt.Fprintf(w, "\n%s\n", r.colors.Sprintf(theme.Muted,
		"%d records read, %d invalid paths dropped, %d duplicates dropped, %d backup sets",
		s.Input, s.Invalid, s.Duplicates, s.Sets))
	if view.ManifestID != "" {
		r.Success(fmt.Sprintf("Manifest %s saved to %s", view.ManifestID, view.Location))
	}
	return nil
}

// RenderCatalog writes the annotated raw catalog
func (r *Renderer) RenderCatalog(view CatalogView) error {
	switch r.config.OutputFormat {
	case FormatJSON, FormatYAML:
		return r.encode(view)
	case FormatCompact:
		rows := make([][]string, 0, len(view.Records))
		for _, rec := range view.Records {
			rows = append(rows, []string{rec.Server, rec.Type, rec.FirstLSN, rec.LastLSN, rec.CheckpointLSN, rec.DatabaseBackupLSN, rec.Device, string(rec.Status)})
		}
		return r.compact([]string{"server", "type", "first_lsn", "last_lsn", "checkpoint_lsn", "database_backup_lsn", "device", "status"}, rows)
	}

	w := r.config.Writer
	theme := r.colors.Theme()
	fmt.Fprintf(w, "%s %s (%s)\n\n", r.colors.Colorize("Backup history of", theme.Primary),
		r.colors.Colorize(view.Database, theme.Highlight), strings.Join(view.Servers, ", "))

	table := r.newTable()
	table.SetHeaders([]string{"Server", "Type", "First LSN", "Last LSN", "Checkpoint LSN", "Base LSN", "Started", "Device", "Status"})
	for _, rec := range view.Records {
		row := []string{rec.Server, rec.Type, rec.FirstLSN, rec.LastLSN, rec.CheckpointLSN, rec.DatabaseBackupLSN, formatTime(rec.StartTime), rec.Device, string(rec.Status)}
		switch rec.Status {
		case RecordInvalidPath:
			table.AddColoredRow(row, theme.Error)
		case RecordDuplicate:
			table.AddColoredRow(row, theme.Warning)
		default:
			table.AddRow(row)
		}
	}
	table.RenderTo(w)

	s := view.Stats
	fmt.Fprintf(w, "\n%s\n", r.colors.Sprintf(theme.Muted,
		"%d records, %d with invalid paths, %d duplicates, %d backup sets", s.Total, s.Invalid, s.Duplicates, s.Sets))
	return nil
}

// RenderManifest writes a stored manifest
func (r *Renderer) RenderManifest(m *manifest.Manifest) error {
	switch r.config.OutputFormat {
	case FormatJSON, FormatYAML:
		return r.encode(m)
	case FormatCompact:
		var rows [][]string
		for _, step := range m.Steps {
			for _, device := range step.Devices {
				rows = append(rows, []string{fmt.Sprint(step.Position), string(step.Type), string(device.Kind), device.Path})
			}
		}
		return r.compact([]string{"position", "type", "kind", "device"}, rows)
	}

	w := r.config.Writer
	theme := r.colors.Theme()
	fmt.Fprintf(w, "%s %s\n", r.colors.Colorize("Manifest", theme.Primary), r.colors.Colorize(m.ID, theme.Highlight))
	fmt.Fprintf(w, "Database: %s\nCreated:  %s", m.Database, formatTime(m.CreatedAt))
	if m.CreatedBy != "" {
		fmt.Fprintf(w, " by %s", m.CreatedBy)
	}
	fmt.Fprintf(w, "\nLast LSN: %s\n", m.LastLSN)
	if m.AppliedLSN != nil {
		fmt.Fprintf(w, "Applied:  %s\n", m.AppliedLSN)
	}
	fmt.Fprintln(w)

	table := r.newTable()
	table.SetHeaders([]string{"#", "Type", "First LSN", "Last LSN", "Kind", "Device"})
	table.SetColumnAlignment(0, AlignRight)
	for i, step := range m.Steps {
		if i > 0 {
			table.AddSeparator()
		}
		for j, device := range step.Devices {
			row := []string{"", "", "", "", string(device.Kind), device.Path}
			if j == 0 {
				row[0], row[1], row[2], row[3] = fmt.Sprint(step.Position), string(step.Type), step.FirstLSN.String(), step.LastLSN.String()
			}
			table.AddColoredRow(row, r.typeColor(string(step.Type)))
		}
	}
	table.RenderTo(w)
	return nil
}

// RenderManifestList writes manifest summaries
func (r *Renderer) RenderManifestList(summaries []manifest.Summary) error {
	switch r.config.OutputFormat {
	case FormatJSON, FormatYAML:
		if summaries == nil {
			summaries = []manifest.Summary{}
		}
		return r.encode(summaries)
	case FormatCompact:
		rows := make([][]string, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, []string{s.ID, s.Database, s.CreatedAt.UTC().Format(time.RFC3339), fmt.Sprint(s.Steps), s.LastLSN.String(), s.Location})
		}
		return r.compact([]string{"id", "database", "created_at", "steps", "last_lsn", "location"}, rows)
	}

	if len(summaries) == 0 {
		r.Info("No manifests found")
		return nil
	}

	table := r.newTable()
	table.SetHeaders([]string{"ID", "Database", "Created", "Steps", "Last LSN", "Size", "Location"})
	table.SetColumnAlignment(3, AlignRight)
	table.SetColumnAlignment(5, AlignRight)
	for _, s := range summaries {
		table.AddRow([]string{s.ID, s.Database, formatTime(s.CreatedAt), fmt.Sprint(s.Steps), s.LastLSN.String(), formatSize(s.Size), s.Location})
	}
	table.RenderTo(r.config.Writer)
	return nil
}

// RenderError writes err. Structured and compact output keep the error on
// the output stream, with the chain error kind, so that scripts can branch
// on it.
func (r *Renderer) RenderError(err error) {
	kind := chain.KindOfError(err)
	switch r.config.OutputFormat {
	case FormatJSON, FormatYAML:
		payload := map[string]string{"error": err.Error()}
		if kind != "" {
			payload["kind"] = string(kind)
		}
		_ = r.encode(payload)
	case FormatCompact:
		fmt.Fprintf(r.config.Writer, "ERROR:%s:%s\n", kind, err)
	default:
		msg := err.Error()
		if kind != "" {
			msg = fmt.Sprintf("[%s] %s", kind, msg)
		}
		r.Error(msg)
	}
}

// Success prints a success message in table output
func (r *Renderer) Success(message string) {
	r.status(r.colors.Theme().Success, "OK", message)
}

// Warning prints a warning message in table output
func (r *Renderer) Warning(message string) {
	r.status(r.colors.Theme().Warning, "WARN", message)
}

// Info prints an informational message in table output
func (r *Renderer) Info(message string) {
	r.status(r.colors.Theme().Info, "INFO", message)
}

// Error prints an error message to the error writer. It is shown even in
// quiet mode.
func (r *Renderer) Error(message string) {
	fmt.Fprintf(r.config.ErrWriter, "%s %s\n", r.colors.Colorize("ERROR", r.colors.Theme().Error), message)
}

func (r *Renderer) status(clr Color, label, message string) {
	if r.config.QuietMode || r.config.OutputFormat != FormatTable {
		return
	}
	fmt.Fprintf(r.config.Writer, "%s %s\n", r.colors.Colorize(label, clr), message)
}

func (r *Renderer) newTable() TableFormatter {
	table := NewTableFormatter(r.colors)
	table.SetStyle(GetTableStyleByName(r.config.TableStyle))

	width := r.config.MaxTableWidth
	if tw, ok := terminalWidth(r.config.Writer); ok && tw < width {
		width = tw
	}
	table.SetMaxWidth(width)
	return table
}

func (r *Renderer) typeColor(backupType string) Color {
	theme := r.colors.Theme()
	switch chain.BackupType(backupType) {
	case chain.BackupTypeFull:
		return theme.Primary
	case chain.BackupTypeDiff:
		return theme.Info
	default:
		return ColorReset
	}
}

func (r *Renderer) encode(v interface{}) error {
	return encodeTo(r.config.Writer, r.config.OutputFormat, v)
}

// compact writes tab separated values with a header line
func (r *Renderer) compact(headers []string, rows [][]string) error {
	var b strings.Builder
	b.WriteString(strings.Join(headers, "\t"))
	b.WriteString("\n")
	for _, row := range rows {
		padded := make([]string, len(headers))
		for i := range headers {
			if i < len(row) {
				padded[i] = strings.ReplaceAll(row[i], "\t", " ")
			}
		}
		b.WriteString(strings.Join(padded, "\t"))
		b.WriteString("\n")
	}
	_, err := io.WriteString(r.config.Writer, b.String())
	return err
}

func encodeTo(w io.Writer, format OutputFormat, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %s is not a structured format", format)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
