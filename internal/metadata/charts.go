package metadata

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var categoryLabels = map[string]string{
	CategoryVeryDissatisfied: "Very dissatisfied",
	CategoryDissatisfied:     "Dissatisfied",
	CategoryNeutral:          "Neutral",
	CategorySatisfied:        "Satisfied",
	CategoryVerySatisfied:    "Very satisfied",
}

var categoryColors = map[string]drawing.Color{
	CategoryVeryDissatisfied: drawing.ColorFromHex("c0392b"),
	CategoryDissatisfied:     drawing.ColorFromHex("e67e22"),
	CategoryNeutral:          drawing.ColorFromHex("95a5a6"),
	CategorySatisfied:        drawing.ColorFromHex("27ae60"),
	CategoryVerySatisfied:    drawing.ColorFromHex("16a085"),
}

// SentimentBarChart renders the VADER component scores as a PNG for BLOB
// storage next to the case study.
func SentimentBarChart(s Sentiment) ([]byte, error) {
	graph := chart.BarChart{
		Title:    "Client sentiment",
		Width:    640,
		Height:   420,
		BarWidth: 80,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Bars: []chart.Value{
			{Label: "Positive", Value: clamp01(s.Positive), Style: chart.Style{FillColor: categoryColors[CategorySatisfied], StrokeWidth: 0}},
			{Label: "Neutral", Value: clamp01(s.Neutral), Style: chart.Style{FillColor: categoryColors[CategoryNeutral], StrokeWidth: 0}},
			{Label: "Negative", Value: clamp01(s.Negative), Style: chart.Style{FillColor: categoryColors[CategoryVeryDissatisfied], StrokeWidth: 0}},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render sentiment chart: %w", err)
	}
	return buf.Bytes(), nil
}

// SatisfactionDonut renders the satisfaction verdict as a donut highlighting
// the assigned bucket against the remaining four.
func SatisfactionDonut(category string) ([]byte, error) {
	values := make([]chart.Value, 0, len(categoryOrder))
	for _, cat := range categoryOrder {
		v := chart.Value{Label: categoryLabels[cat], Value: 1}
		if cat == category {
			v.Value = 4
			v.Style = chart.Style{FillColor: categoryColors[cat], StrokeWidth: 0}
		} else {
			v.Style = chart.Style{FillColor: categoryColors[cat].WithAlpha(70), StrokeWidth: 0}
		}
		values = append(values, v)
	}

	graph := chart.DonutChart{
		Title:  "Satisfaction",
		Width:  420,
		Height: 420,
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render satisfaction donut: %w", err)
	}
	return buf.Bytes(), nil
}

// clamp01 floors at a visible sliver so an all-neutral text still renders.
func clamp01(v float64) float64 {
	if v < 0.01 {
		return 0.01
	}
	if v > 1 {
		return 1
	}
	return v
}
