// Package ranking scores fundraisers against a search query and user interests.
package ranking

import (
	"sort"
	"strings"
	"time"

	"github.com/0x-stone/zspa/pkg/domain"
)

// Weights of each scoring signal.
type Weights struct {
	TitleMatch      float64
	DescMatch       float64
	TagTextMatch    float64
	LocationMatch   float64
	RecencyBonus    float64
	ProgressBonus   float64
	InterestOverlap float64
	PerInterestTag  float64
	TagPoint        float64
	TrustWeight     float64
}

// DefaultWeights are the production weights.
var DefaultWeights = Weights{
	TitleMatch:      50,
	DescMatch:       20,
	TagTextMatch:    15,
	LocationMatch:   60,
	RecencyBonus:    25,
	ProgressBonus:   20,
	InterestOverlap: 15,
	PerInterestTag:  5,
	TagPoint:        10,
	TrustWeight:     1.5,
}

const (
	// DefaultLimit caps the number of ranked results.
	DefaultLimit = 20
	recentWindow = 60 * 24 * time.Hour
	statusActive = "active"
)

// Ranker orders causes best first.
type Ranker struct {
	Weights Weights
	Limit   int
	Now     func() time.Time
}

// New returns a Ranker with the default weights.
func New() *Ranker {
	return &Ranker{Weights: DefaultWeights, Limit: DefaultLimit, Now: time.Now}
}

// Keywords splits free text into lower-case search terms longer than two characters.
func Keywords(text string) []string {
	var out []string
	for _, k := range strings.Fields(strings.ToLower(text)) {
		if len(k) > 2 {
			out = append(out, k)
		}
	}
	return out
}

// Rank filters causes to active ones matching the query and returns them
// scored and sorted best first. MatchScore is set on every result.
func (r *Ranker) Rank(causes []domain.Cause, q domain.SearchQuery, interests []string) []domain.Cause {
	keywords := Keywords(q.Text)
	location := strings.ToLower(strings.TrimSpace(q.Location))
	cutoff := r.Now().Add(-recentWindow)

	var out []domain.Cause
	for _, c := range causes {
		if c.Status != "" && c.Status != statusActive {
			continue
		}
		relevance, matched := r.relevance(c, keywords)
		if len(keywords) > 0 && !matched {
			continue
		}
		locScore := 0.0
		if location != "" {
			if !containsFold(c.Country, location) && !containsFold(c.City, location) {
				continue
			}
			locScore = r.Weights.LocationMatch
		}

		score := c.TrustScore*r.Weights.TrustWeight + relevance + locScore
		if !c.CreatedAt.IsZero() && !c.CreatedAt.Before(cutoff) {
			score += r.Weights.RecencyBonus
		}
		if c.GoalAmount > 0 && c.AmountRaised > 0 && c.AmountRaised < c.GoalAmount {
			score += r.Weights.ProgressBonus
		}
		score += r.affinity(c, interests)
		score += float64(overlap(c.Tags, q.Tags)) * r.Weights.TagPoint

		c.MatchScore = score
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchScore > out[j].MatchScore })
	if r.Limit > 0 && len(out) > r.Limit {
		out = out[:r.Limit]
	}
	return out
}

func (r *Ranker) relevance(c domain.Cause, keywords []string) (float64, bool) {
	tags := strings.Join(c.Tags, " ")
	score := 0.0
	matched := false
	for _, k := range keywords {
		if containsFold(c.Title, k) {
			score += r.Weights.TitleMatch
			matched = true
		}
		if containsFold(c.ShortDescription, k) {
			score += r.Weights.DescMatch
			matched = true
		}
		if containsFold(tags, k) {
			score += r.Weights.TagTextMatch
			matched = true
		}
	}
	return score, matched
}

func (r *Ranker) affinity(c domain.Cause, interests []string) float64 {
	n := overlap(c.Tags, interests)
	if n == 0 {
		return 0
	}
	return r.Weights.InterestOverlap + float64(n)*r.Weights.PerInterestTag
}

func overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[strings.ToLower(t)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(b))
	n := 0
	for _, t := range b {
		t = strings.ToLower(t)
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
