// Package census reads, builds and analyses religion census tables keyed by
// region code.
package census

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"worship/internal/models"
)

// Decode reads a table in the religion.json shape.
func Decode(r io.Reader) (models.CensusTable, error) {
	var t models.CensusTable
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode census table: %w", err)
	}
	if t == nil {
		t = models.CensusTable{}
	}
	return t, nil
}

// Encode writes the table with two-space indentation and unescaped UTF-8.
func Encode(w io.Writer, t models.CensusTable) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encode census table: %w", err)
	}
	return nil
}

// LoadFile decodes a table from disk.
func LoadFile(path string) (models.CensusTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile encodes a table to disk, replacing any existing file.
func WriteFile(path string, t models.CensusTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
