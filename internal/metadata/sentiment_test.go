package metadata

import "testing"

func TestBucketForScore_Edges(t *testing.T) {
	cases := []struct {
		compound float64
		want     string
	}{
		{-1.0, CategoryVeryDissatisfied},
		{-0.6, CategoryVeryDissatisfied},
		{-0.3, CategoryDissatisfied},
		{-0.1, CategoryDissatisfied},
		{0.0, CategoryNeutral},
		{0.09, CategoryNeutral},
		{0.3, CategorySatisfied},
		{0.59, CategorySatisfied},
		{0.6, CategoryVerySatisfied},
		{1.0, CategoryVerySatisfied},
	}
	for _, c := range cases {
		if got := bucketForScore(c.compound); got != c.want {
			t.Fatalf("bucketForScore(%v) = %q want %q", c.compound, got, c.want)
		}
	}
}

func TestAnalyze_PositiveText(t *testing.T) {
	s := Analyze("The collaboration was excellent, the team was amazing and the results exceeded every expectation. We love the product.")
	if s.Compound <= 0 {
		t.Fatalf("expected positive compound, got %v", s.Compound)
	}
	if s.Category != CategorySatisfied && s.Category != CategoryVerySatisfied {
		t.Fatalf("expected a satisfied bucket, got %q", s.Category)
	}
}

func TestAnalyze_NegativeText(t *testing.T) {
	s := Analyze("The project was terrible and the delays were unacceptable. We are furious about the wasted budget, an awful experience.")
	if s.Compound >= 0 {
		t.Fatalf("expected negative compound, got %v", s.Compound)
	}
	if s.Category != CategoryDissatisfied && s.Category != CategoryVeryDissatisfied {
		t.Fatalf("expected a dissatisfied bucket, got %q", s.Category)
	}
}

func TestAdjacent(t *testing.T) {
	if !adjacent(CategorySatisfied, CategoryVerySatisfied) {
		t.Fatalf("satisfied and very_satisfied should be adjacent")
	}
	if adjacent(CategoryVeryDissatisfied, CategoryVerySatisfied) {
		t.Fatalf("opposite ends should not be adjacent")
	}
	if adjacent(CategoryNeutral, CategoryNeutral) {
		t.Fatalf("a bucket is not adjacent to itself")
	}
}

func TestSentimentBarChart_ProducesPNG(t *testing.T) {
	s := Sentiment{Compound: 0.7, Positive: 0.6, Negative: 0.05, Neutral: 0.35, Category: CategoryVerySatisfied}
	png, err := SentimentBarChart(s)
	if err != nil {
		t.Fatalf("SentimentBarChart: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Fatalf("expected PNG output, got %d bytes", len(png))
	}
}

func TestSentimentBarChart_ZeroScores(t *testing.T) {
	// All-zero components must still render (values are floored).
	png, err := SentimentBarChart(Sentiment{Category: CategoryNeutral})
	if err != nil {
		t.Fatalf("SentimentBarChart with zeros: %v", err)
	}
	if len(png) == 0 {
		t.Fatalf("expected non-empty PNG")
	}
}

func TestSatisfactionDonut_AllCategories(t *testing.T) {
	for _, cat := range categoryOrder {
		png, err := SatisfactionDonut(cat)
		if err != nil {
			t.Fatalf("SatisfactionDonut(%q): %v", cat, err)
		}
		if len(png) < 8 || string(png[1:4]) != "PNG" {
			t.Fatalf("SatisfactionDonut(%q): expected PNG output", cat)
		}
	}
}
