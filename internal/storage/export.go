package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/memo/internal/errors"
	"github.com/hpungsan/memo/internal/note"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportJSONL ExportFormat = "jsonl" // default: header line, then one note per line
	ExportYAML  ExportFormat = "yaml"
)

// ExportSchemaVersion is written in every export header.
const ExportSchemaVersion = "1.0"

// ExportHeader is the first line of a JSONL export and the top of a YAML export.
type ExportHeader struct {
	MemoExport    bool   `json:"_memo_export" yaml:"memo_export"`
	SchemaVersion string `json:"schema_version" yaml:"schema_version"`
	ExportedAt    int64  `json:"exported_at" yaml:"exported_at"`
	Count         int    `json:"count" yaml:"count"`
}

// yamlExport is the YAML document layout.
type yamlExport struct {
	ExportHeader `yaml:",inline"`
	Notes        []note.Note `yaml:"notes"`
}

// ParseExportFormat validates a user-supplied format name. Empty means jsonl.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExportJSONL:
		return ExportJSONL, nil
	case ExportYAML, "yml":
		return ExportYAML, nil
	}
	return "", errors.NewInvalidRequest("format must be one of: jsonl, yaml")
}

// Export writes notes to w in the given format.
func Export(w io.Writer, notes []note.Note, format ExportFormat, exportedAt time.Time) error {
	header := ExportHeader{
		MemoExport:    true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    note.Millis(exportedAt),
		Count:         len(notes),
	}

	switch format {
	case ExportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(yamlExport{ExportHeader: header, Notes: notes}); err != nil {
			return errors.NewInternal(err)
		}
		if err := enc.Close(); err != nil {
			return errors.NewInternal(err)
		}
		return nil

	case ExportJSONL, "":
		bw := bufio.NewWriter(w)
		enc := json.NewEncoder(bw)
		if err := enc.Encode(header); err != nil {
			return errors.NewInternal(err)
		}
		for _, n := range notes {
			if err := enc.Encode(n); err != nil {
				return errors.NewInternal(err)
			}
		}
		if err := bw.Flush(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	}

	return errors.NewInvalidRequest(fmt.Sprintf("unknown export format %q", format))
}

// ExportFile writes notes to path. The file appears complete or not at all;
// an existing file at path is preserved if the export fails.
func ExportFile(path string, notes []note.Note, format ExportFormat, exportedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Check if destination is a symlink (os.Rename would replace the link, not its target)
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	var buf bytes.Buffer
	if err := Export(&buf, notes, format, exportedAt); err != nil {
		return err
	}
	if err := writeFileAtomic(path, buf.Bytes(), 0600); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DefaultExportPath returns <baseDir>/exports/notes-<timestamp>.<format>.
func DefaultExportPath(baseDir string, format ExportFormat, now time.Time) string {
	if format == "" {
		format = ExportJSONL
	}
	filename := fmt.Sprintf("notes-%s.%s", now.Format("2006-01-02T150405"), format)
	return filepath.Join(baseDir, "exports", filename)
}
