package sentiment

import (
	"context"
	"strings"

	"github.com/selivandex/news-digest/pkg/models"
)

// Analyzer performs simple keyword-based sentiment analysis
type Analyzer struct {
	positiveWords map[string]float64
	negativeWords map[string]float64
}

// NewAnalyzer creates new sentiment analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		positiveWords: buildPositiveWords(),
		negativeWords: buildNegativeWords(),
	}
}

func (a *Analyzer) Name() string {
	return "keyword"
}

// Score implements Scorer. It never fails.
func (a *Analyzer) Score(ctx context.Context, text string) (models.Sentiment, error) {
	polarity := a.Polarity(text)
	score := (polarity + 1) / 2
	return models.Sentiment{Label: LabelFor(score), Score: score}, nil
}

// Polarity returns a damped net keyword weight in (-1.0, 1.0)
func (a *Analyzer) Polarity(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0.0
	}

	var net, total float64

	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]«»“”‘’")

		if weight, ok := a.positiveWords[word]; ok {
			net += weight
			total += weight
		}

		if weight, ok := a.negativeWords[word]; ok {
			net -= weight
			total += weight
		}
	}

	if total == 0 {
		return 0.0
	}

	// +1 keeps a single weak keyword from producing full confidence
	return net / (total + 1)
}

// buildPositiveWords returns positive keywords for general news
func buildPositiveWords() map[string]float64 {
	return map[string]float64{
		"great":         0.8,
		"amazing":       0.9,
		"wonderful":     0.9,
		"excellent":     0.9,
		"fantastic":     0.9,
		"outstanding":   0.9,
		"breakthrough":  1.0,
		"success":       0.8,
		"successful":    0.8,
		"positive":      0.6,
		"exciting":      0.7,
		"innovative":    0.7,
		"innovation":    0.6,
		"revolutionary": 0.8,
		"advancement":   0.7,
		"progress":      0.6,
		"achievement":   0.7,
		"growth":        0.6,
		"grow":          0.5,
		"gain":          0.5,
		"gains":         0.5,
		"rise":          0.4,
		"surge":         0.6,
		"record":        0.4,
		"win":           0.7,
		"wins":          0.7,
		"won":           0.7,
		"best":          0.7,
		"improve":       0.6,
		"improves":      0.6,
		"improved":      0.6,
		"celebrate":     0.7,
		"hope":          0.5,
		"recovery":      0.5,
		"boost":         0.6,
		"rescued":       0.6,
	}
}

// buildNegativeWords returns negative keywords for general news
func buildNegativeWords() map[string]float64 {
	return map[string]float64{
		"terrible":      0.9,
		"disaster":      1.0,
		"crisis":        0.9,
		"tragic":        1.0,
		"tragedy":       1.0,
		"disappointing": 0.7,
		"setback":       0.7,
		"concern":       0.5,
		"concerns":      0.5,
		"failure":       0.8,
		"failures":      0.8,
		"decline":       0.6,
		"declining":     0.6,
		"death":         1.0,
		"dead":          1.0,
		"killed":        1.0,
		"worst":         0.9,
		"devastating":   1.0,
		"devastation":   1.0,
		"critical":      0.5,
		"severe":        0.7,
		"crash":         0.9,
		"war":           0.8,
		"attack":        0.8,
		"fraud":         0.9,
		"lawsuit":       0.6,
		"layoffs":       0.7,
		"loss":          0.6,
		"losses":        0.6,
		"plunge":        0.8,
		"poor":          0.6,
		"problems":      0.6,
		"worsens":       0.8,
		"accident":      0.8,
	}
}
