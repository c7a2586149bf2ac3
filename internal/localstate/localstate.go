// Package localstate owns the JSON state document used by local-only mode and
// by the export/import endpoints.
//
// The document shape is {months, categories, categoryMemory}. Months hold the
// expenses grouped by "YYYY-MM" and categoryMemory maps a description to the
// category last chosen for it.
package localstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cardspend/internal/core"
)

// DefaultCategories seeds an empty local store.
var DefaultCategories = []string{
	"Alimentação", "Transporte", "Compras", "Contas", "Outro",
	"assinatura", "pet", "carro", "casa", "Saúde",
}

// ErrIncompleteDocument is returned when an import lacks one of the three sections.
var ErrIncompleteDocument = errors.New("document must contain months, categories and categoryMemory")

type Month struct {
	Name     string         `json:"name"`
	Expenses []core.Expense `json:"expenses"`
}

type Document struct {
	Months         []Month           `json:"months"`
	Categories     []string          `json:"categories"`
	CategoryMemory map[string]string `json:"categoryMemory"`
}

// Build assembles a document, newest month first.
func Build(expenses []core.Expense, categories []core.Category, memory []core.CategoryMemory) Document {
	doc := Document{
		Months:         []Month{},
		Categories:     make([]string, 0, len(categories)),
		CategoryMemory: make(map[string]string, len(memory)),
	}
	keys, groups := core.GroupByMonth(expenses)
	for _, k := range keys {
		doc.Months = append(doc.Months, Month{Name: k, Expenses: groups[k]})
	}
	for _, c := range categories {
		doc.Categories = append(doc.Categories, c.Name)
	}
	for _, m := range memory {
		doc.CategoryMemory[m.Description] = m.Category
	}
	return doc
}

// Expenses flattens every month of the document.
func (d Document) Expenses() []core.Expense {
	var out []core.Expense
	for _, m := range d.Months {
		out = append(out, m.Expenses...)
	}
	return out
}

// Decode reads a document and requires all three sections to be present.
func Decode(r io.Reader) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	for _, key := range []string{"months", "categories", "categoryMemory"} {
		v, ok := sections[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return Document{}, ErrIncompleteDocument
		}
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Load reads a JSON file into v. A missing file reports false and no error.
func Load[T any](path string, v *T) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return false, fmt.Errorf("decode state file %s: %w", path, err)
	}
	return true, nil
}

// Save writes v as indented JSON via a temp file and rename.
func Save[T any](path string, v T) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
