package localstate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardspend/internal/core"
)

func TestBuildGroupsByMonth(t *testing.T) {
	expenses := []core.Expense{
		{ID: 1, Description: "Uber", Amount: core.Money{Cents: 1500}, Date: core.NewDate(2024, 1, 10)},
		{ID: 2, Description: "Netflix 2/12", Amount: core.Money{Cents: 3990}, Date: core.NewDate(2024, 2, 1), Category: "assinatura"},
		{ID: 3, Description: "Bus", Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, 1, 20)},
	}
	doc := Build(expenses,
		[]core.Category{{ID: 1, Name: "assinatura"}, {ID: 2, Name: "Transporte"}},
		[]core.CategoryMemory{{UserID: 1, Description: "Netflix", Category: "assinatura"}})

	require.Len(t, doc.Months, 2)
	assert.Equal(t, "2024-02", doc.Months[0].Name)
	assert.Equal(t, "2024-01", doc.Months[1].Name)
	assert.Len(t, doc.Months[1].Expenses, 2)
	assert.Equal(t, []string{"assinatura", "Transporte"}, doc.Categories)
	assert.Equal(t, map[string]string{"Netflix": "assinatura"}, doc.CategoryMemory)
	assert.Len(t, doc.Expenses(), 3)
}

func TestBuildEmptyKeepsSections(t *testing.T) {
	doc := Build(nil, nil, nil)
	assert.NotNil(t, doc.Months)
	assert.NotNil(t, doc.Categories)
	assert.NotNil(t, doc.CategoryMemory)
}

func TestDecode(t *testing.T) {
	t.Run("complete document", func(t *testing.T) {
		doc, err := Decode(strings.NewReader(`{
			"months": [{"name": "2024-03", "expenses": [{"description": "Uber", "amount": 12.5, "date": "2024-03-02"}]}],
			"categories": ["Transporte"],
			"categoryMemory": {"Uber": "Transporte"}
		}`))
		require.NoError(t, err)
		require.Len(t, doc.Expenses(), 1)
		assert.Equal(t, int64(1250), doc.Expenses()[0].Amount.Cents)
		assert.Equal(t, "2024-03-02", doc.Expenses()[0].Date.String())
	})

	missing := map[string]string{
		"no months":         `{"categories": [], "categoryMemory": {}}`,
		"no categories":     `{"months": [], "categoryMemory": {}}`,
		"null memory":       `{"months": [], "categories": [], "categoryMemory": null}`,
		"plain array input": `[]`,
	}
	for name, body := range missing {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(body))
			assert.Error(t, err)
		})
	}

	_, err := Decode(strings.NewReader(`{"months": [], "categories": []}`))
	assert.ErrorIs(t, err, ErrIncompleteDocument)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	var empty Document
	found, err := Load(path, &empty)
	require.NoError(t, err)
	assert.False(t, found)

	doc := Document{
		Months:         []Month{{Name: "2024-05", Expenses: []core.Expense{{Description: "Pet shop", Amount: core.Money{Cents: 9900}, Date: core.NewDate(2024, 5, 3), Category: "pet"}}}},
		Categories:     []string{"pet"},
		CategoryMemory: map[string]string{"Pet shop": "pet"},
	}
	require.NoError(t, Save(path, doc))

	var loaded Document
	found, err = Load(path, &loaded)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, doc.Categories, loaded.Categories)
	assert.Equal(t, doc.CategoryMemory, loaded.CategoryMemory)
	require.Len(t, loaded.Months, 1)
	assert.Equal(t, int64(9900), loaded.Months[0].Expenses[0].Amount.Cents)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	var doc Document
	_, err := Load(path, &doc)
	assert.Error(t, err)
}
