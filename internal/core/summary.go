package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
	Count  int    `json:"count"`
}

// MonthSummary is a compact summary for a specific "YYYY-MM" month.
type MonthSummary struct {
	Month      string           `json:"month"`
	Total      Money            `json:"total"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// Share returns the fraction of the month total held by c, in percent.
func (s MonthSummary) Share(c CategoryAmount) float64 {
	if s.Total.Cents == 0 {
		return 0
	}
	return float64(c.Amount.Cents) / float64(s.Total.Cents) * 100
}

// Summarize groups expenses by month and category label. Months come out in
// ascending order, categories by amount descending then name.
func Summarize(expenses []Expense) []MonthSummary {
	type bucket struct {
		total Money
		count int
		cats  map[string]*CategoryAmount
	}
	months := make(map[string]*bucket)
	for _, e := range expenses {
		key := e.Date.MonthKey()
		b, ok := months[key]
		if !ok {
			b = &bucket{cats: make(map[string]*CategoryAmount)}
			months[key] = b
		}
		label := e.Category
		if label == "" {
			label = UncategorizedLabel
		}
		c, ok := b.cats[label]
		if !ok {
			c = &CategoryAmount{Name: label}
			b.cats[label] = c
		}
		c.Amount = c.Amount.Add(e.Amount)
		c.Count++
		b.total = b.total.Add(e.Amount)
		b.count++
	}

	out := make([]MonthSummary, 0, len(months))
	for key, b := range months {
		s := MonthSummary{Month: key, Total: b.total, Count: b.count}
		for _, c := range b.cats {
			s.ByCategory = append(s.ByCategory, *c)
		}
		sort.Slice(s.ByCategory, func(i, j int) bool {
			a, c := s.ByCategory[i], s.ByCategory[j]
			if a.Amount.Cents != c.Amount.Cents {
				return a.Amount.Cents > c.Amount.Cents
			}
			return a.Name < c.Name
		})
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// GroupByMonth buckets expenses by "YYYY-MM", preserving input order within
// a month. Keys are returned in descending order, newest month first.
func GroupByMonth(expenses []Expense) ([]string, map[string][]Expense) {
	groups := make(map[string][]Expense)
	for _, e := range expenses {
		k := e.Date.MonthKey()
		groups[k] = append(groups[k], e)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, groups
}
