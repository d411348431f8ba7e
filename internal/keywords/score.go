// Package keywords scores Pinterest keyword popularity and tracks ranking.
package keywords

import "math"

// Pin is one Pinterest search result.
type Pin struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Saves       int    `json:"saves"`
	Comments    int    `json:"comments"`
	Reactions   int    `json:"reactions"`
}

// Engagement is the sum of saves, comments and reactions.
func (p Pin) Engagement() int {
	return p.Saves + p.Comments + p.Reactions
}

// Metrics are the raw popularity signals of a keyword.
type Metrics struct {
	Volume     int `json:"volume"`
	Saves      int `json:"saves"`
	Engagement int `json:"engagement"`
}

// Ceilings are the metric values at which each signal saturates.
type Ceilings struct {
	Volume     float64 `yaml:"volume"`
	Saves      float64 `yaml:"saves"`
	Engagement float64 `yaml:"engagement"`
}

// DefaultCeilings returns the standard saturation points.
func DefaultCeilings() Ceilings {
	return Ceilings{Volume: 1000, Saves: 10000, Engagement: 20000}
}

const (
	volumeWeight     = 0.4
	savesWeight      = 0.3
	engagementWeight = 0.3
)

// normalize maps v onto [0,1] against ceiling c.
func normalize(v int, c float64) float64 {
	if v <= 0 || c <= 0 {
		return 0
	}
	return math.Min(float64(v)/c, 1)
}

// Score returns the popularity of m in [0,100]. It is monotone in each metric
// and reaches 100 once every metric is at or above its ceiling.
func Score(m Metrics, c Ceilings) int {
	s := volumeWeight*normalize(m.Volume, c.Volume) +
		savesWeight*normalize(m.Saves, c.Saves) +
		engagementWeight*normalize(m.Engagement, c.Engagement)
	return int(math.Round(s * 100))
}

// Aggregate derives keyword metrics from its search results.
func Aggregate(pins []Pin) Metrics {
	m := Metrics{Volume: len(pins)}
	for _, p := range pins {
		m.Saves += max(p.Saves, 0)
		m.Engagement += max(p.Saves, 0) + max(p.Comments, 0) + max(p.Reactions, 0)
	}
	return m
}
