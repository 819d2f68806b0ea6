// Package output serializes extraction results for the CLI: a JSON
// document, newline-delimited JSON for streaming batches, or YAML.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name from a CLI flag.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatJSONL, FormatYAML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Writer serializes results to a destination. Write may buffer; Flush
// renders everything buffered. A single written item renders as a bare
// document, several render as a sequence.
type Writer interface {
	Write(item any) error
	Flush() error
}

// NewWriter creates a writer for the format.
func NewWriter(w io.Writer, format Format) (Writer, error) {
	switch format {
	case FormatJSON:
		return &jsonWriter{w: bufio.NewWriter(w)}, nil
	case FormatJSONL:
		return &jsonlWriter{w: bufio.NewWriter(w)}, nil
	case FormatYAML:
		return &yamlWriter{w: bufio.NewWriter(w)}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type jsonWriter struct {
	w     *bufio.Writer
	items []any
}

func (j *jsonWriter) Write(item any) error {
	j.items = append(j.items, item)
	return nil
}

func (j *jsonWriter) Flush() error {
	var doc any
	switch len(j.items) {
	case 0:
		return j.w.Flush()
	case 1:
		doc = j.items[0]
	default:
		doc = j.items
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if _, err := j.w.Write(out); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

// jsonlWriter streams one JSON document per line, flushed as written, so
// long batch runs produce output incrementally.
type jsonlWriter struct {
	w *bufio.Writer
}

func (j *jsonlWriter) Write(item any) error {
	out, err := json.Marshal(item)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(out); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *jsonlWriter) Flush() error { return j.w.Flush() }

type yamlWriter struct {
	w     *bufio.Writer
	items []any
}

func (y *yamlWriter) Write(item any) error {
	y.items = append(y.items, item)
	return nil
}

func (y *yamlWriter) Flush() error {
	if len(y.items) == 0 {
		return y.w.Flush()
	}
	enc := yaml.NewEncoder(y.w)
	enc.SetIndent(2)

	var err error
	if len(y.items) == 1 {
		err = enc.Encode(y.items[0])
	} else {
		err = enc.Encode(y.items)
	}
	if err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return y.w.Flush()
}
