package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardspend/internal/core"
)

func TestParseStatementCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []core.IngestRow
		wantErr bool
	}{
		{
			name:  "comma separated english header",
			input: "description,amount,date\nUBER 1/3,12.50,2024-03-01\n",
			want:  []core.IngestRow{{Description: "UBER 1/3", Amount: "12.50", Date: "2024-03-01"}},
		},
		{
			name:  "semicolon separated portuguese header with BOM",
			input: "\ufeffDescrição;Valor;Data;Categoria\nPADARIA;R$ 8.00;2024-03-02;Alimentação\n",
			want: []core.IngestRow{{
				Description: "PADARIA", Amount: "R$ 8.00", Date: "2024-03-02", Category: "Alimentação",
			}},
		},
		{
			name:  "title column and blank lines",
			input: "title,value,date,extra\nNetflix,39.90,2024-03-03,x\n,,,\n",
			want:  []core.IngestRow{{Title: "Netflix", Amount: "39.90", Date: "2024-03-03"}},
		},
		{
			name:  "short record",
			input: "description,amount,date\nLONE,5\n",
			want:  []core.IngestRow{{Description: "LONE", Amount: "5"}},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "no description", input: "amount,date\n1,2024-03-01\n", wantErr: true},
		{name: "no amount", input: "description,date\nx,2024-03-01\n", wantErr: true},
		{name: "unterminated quote", input: "description,amount,date\n\"x,1,2024-03-01\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatementCSV(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetPathValue("id", tt.value)
		got, err := ParseID(req, "id")
		if tt.wantErr {
			assert.Error(t, err, tt.value)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseMonthParam(t *testing.T) {
	tests := []struct {
		query   string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"?month=2024-03", "2024-03", false},
		{"?month=2024-13", "", true},
		{"?month=03/2024", "", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/summary"+tt.query, nil)
		got, err := ParseMonthParam(req)
		if tt.wantErr {
			assert.Error(t, err, tt.query)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecodeJSON(t *testing.T) {
	var v map[string]string

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := decodeJSON(httptest.NewRecorder(), req, 1024, &v)
	require.Error(t, err)
	assert.Equal(t, "request body is empty", err.Error())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"`+strings.Repeat("x", 100)+`"}`))
	err = decodeJSON(httptest.NewRecorder(), req, 16, &v)
	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, err, &maxErr)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"b"}`))
	require.NoError(t, decodeJSON(httptest.NewRecorder(), req, 1024, &v))
	assert.Equal(t, "b", v["a"])
}
