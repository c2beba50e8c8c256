package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"restore-chain/internal/chain"
	"restore-chain/internal/errors"
)

// File is the layout of an exported catalog
type File struct {
	Backups []Row `json:"backups" yaml:"backups"`
}

// FileSource reads backup history from an exported YAML or JSON catalog.
// It lets a chain be resolved offline or on a machine with no access to the
// replicas.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the file path
func (fs *FileSource) Name() string {
	return fs.path
}

// RecentBackups returns the rows of database found in the file
func (fs *FileSource) RecentBackups(ctx context.Context, database string) ([]chain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, errors.WrapError(err, fmt.Sprintf("failed to read catalog file %s", fs.path))
	}

	rows, err := DecodeRows(data, formatFromPath(fs.path))
	if err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeCatalog, "failed to parse catalog file", err).
			WithContext("path", fs.path)
	}

	var selected []Row
	for _, row := range rows {
		if database == "" || strings.EqualFold(row.DatabaseName, database) {
			selected = append(selected, row)
		}
	}

	records, err := ToRecords(selected)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeCatalog, "malformed catalog file", err).
			WithContext("path", fs.path)
	}
	return records, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

// DecodeRows parses an exported catalog. Both a {backups: [...]} document and
// a bare list of rows are accepted.
func DecodeRows(data []byte, format string) ([]Row, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch format {
	case "json":
		if trimmed[0] == '[' {
			var rows []Row
			err := json.Unmarshal(trimmed, &rows)
			return rows, err
		}
		var file File
		err := json.Unmarshal(trimmed, &file)
		return file.Backups, err
	case "yaml":
		var node yaml.Node
		if err := yaml.Unmarshal(trimmed, &node); err != nil {
			return nil, err
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			var rows []Row
			err := node.Content[0].Decode(&rows)
			return rows, err
		}
		var file File
		err := node.Decode(&file)
		return file.Backups, err
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
}

// Export writes records as a catalog file readable by FileSource
func Export(w io.Writer, format string, records []chain.Record) error {
	file := File{Backups: make([]Row, 0, len(records))}
	for _, rec := range records {
		file.Backups = append(file.Backups, RowFromRecord(rec))
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(file)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(file)
	default:
		return fmt.Errorf("unsupported catalog format %q", format)
	}
}
