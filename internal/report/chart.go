package report

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"cardspend/internal/core"
)

// OtherLabel groups categories too small to draw on their own.
const OtherLabel = "Other"

// minSharePercent is the smallest share drawn as its own slice.
const minSharePercent = 1.0

// CategoryPie renders the month's spending per category as a PNG pie chart.
// Only positive category totals are drawn.
func CategoryPie(sum core.MonthSummary) ([]byte, error) {
	values := pieValues(sum)
	if len(values) == 0 {
		return nil, ErrNoData
	}

	pie := chart.PieChart{
		Title:  "Expenses " + sum.Month,
		Width:  640,
		Height: 640,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
			FillColor: chart.ColorWhite,
		},
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// pieValues turns positive category totals into slices, folding every
// category under minSharePercent of the positive total into OtherLabel.
func pieValues(sum core.MonthSummary) []chart.Value {
	var total int64
	for _, c := range sum.ByCategory {
		if c.Amount.Cents > 0 {
			total += c.Amount.Cents
		}
	}
	if total == 0 {
		return nil
	}

	var values []chart.Value
	var other int64
	for _, c := range sum.ByCategory {
		if c.Amount.Cents <= 0 {
			continue
		}
		share := float64(c.Amount.Cents) / float64(total) * 100
		if share < minSharePercent {
			other += c.Amount.Cents
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.0f%%", c.Name, share),
			Value: c.Amount.Float(),
		})
	}
	if other > 0 {
		values = append(values, chart.Value{
			Label: OtherLabel,
			Value: core.Money{Cents: other}.Float(),
		})
	}
	return values
}
