// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies, path identifiers, month parameters and CSV statements.

package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cardspend/internal/core"
)

// decodeJSON decodes the request body into v. The body is capped at
// maxBytes; exceeding it surfaces *http.MaxBytesError.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// ParseID reads a positive integer path value.
func ParseID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return id, nil
}

// ParseMonthParam reads an optional "YYYY-MM" month query parameter.
func ParseMonthParam(r *http.Request) (string, error) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		return "", nil
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return "", badRequest("month must be YYYY-MM")
	}
	return month, nil
}

// csvColumns maps accepted header names to IngestRow fields.
var csvColumns = map[string]string{
	"description": "description",
	"descricao":   "description",
	"descrição":   "description",
	"title":       "title",
	"titulo":      "title",
	"título":      "title",
	"amount":      "amount",
	"valor":       "amount",
	"value":       "amount",
	"date":        "date",
	"data":        "date",
	"category":    "category",
	"categoria":   "category",
}

// ParseStatementCSV reads a card statement. The first record is the header;
// column names are matched case-insensitively against csvColumns and
// unknown columns are ignored. Comma and semicolon separators are accepted.
func ParseStatementCSV(r io.Reader) ([]core.IngestRow, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.TrimPrefix(string(raw), "\ufeff")

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comma = detectSeparator(text)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, badRequest("CSV file is empty")
	}
	if err != nil {
		return nil, badRequest("invalid CSV: " + err.Error())
	}

	index := make(map[string]int)
	for i, name := range header {
		if field, ok := csvColumns[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	_, hasDesc := index["description"]
	_, hasTitle := index["title"]
	if !hasDesc && !hasTitle {
		return nil, badRequest("CSV header needs a description or title column")
	}
	for _, required := range []string{"amount", "date"} {
		if _, ok := index[required]; !ok {
			return nil, badRequest(fmt.Sprintf("CSV header needs a %s column", required))
		}
	}

	var rows []core.IngestRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, badRequest("invalid CSV: " + err.Error())
		}
		if blankRecord(record) {
			continue
		}
		get := func(field string) string {
			i, ok := index[field]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		rows = append(rows, core.IngestRow{
			Description: get("description"),
			Title:       get("title"),
			Amount:      core.AmountInput(get("amount")),
			Date:        get("date"),
			Category:    get("category"),
		})
	}
	return rows, nil
}

// detectSeparator picks ';' when the header line has more semicolons than commas.
func detectSeparator(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
