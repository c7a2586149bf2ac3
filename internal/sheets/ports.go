package sheets

import (
	"context"

	"cardspend/internal/core"
)

// ExpenseExporter mirrors stored expenses to an external spreadsheet.
type ExpenseExporter interface {
	// AppendExpenses writes one row per expense and returns a reference to
	// the written range.
	AppendExpenses(ctx context.Context, expenses []core.Expense) (ref string, err error)
}
