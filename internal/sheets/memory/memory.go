// Package memory is an in-process spreadsheet exporter. It records every
// appended row and is used when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"cardspend/internal/core"
	ports "cardspend/internal/sheets"
)

type Recorder struct {
	mu    sync.Mutex
	items []core.Expense
}

var _ ports.ExpenseExporter = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{}
}

// AppendExpenses stores the expenses and returns a synthetic row range.
func (r *Recorder) AppendExpenses(_ context.Context, expenses []core.Expense) (string, error) {
	for _, e := range expenses {
		if err := e.Validate(); err != nil {
			return "", err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(expenses) == 0 {
		return "", nil
	}
	first := len(r.items) + 1
	r.items = append(r.items, expenses...)
	return fmt.Sprintf("mem:%d-%d", first, len(r.items)), nil
}

// Expenses returns every recorded expense in append order.
func (r *Recorder) Expenses() []core.Expense {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Expense(nil), r.items...)
}
