package restock

import (
	"math"
	"sort"
	"time"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/money"
)

const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyNormal   = "normal"
)

// Advisor turns recent sales velocity into restock suggestions for products
// that are low on stock or about to run out.
type Advisor struct {
	window    time.Duration
	coverDays float64
}

func NewAdvisor(windowDays int, coverDays int) *Advisor {
	if windowDays <= 0 {
		windowDays = 14
	}
	if coverDays <= 0 {
		coverDays = 7
	}
	return &Advisor{
		window:    time.Duration(windowDays) * 24 * time.Hour,
		coverDays: float64(coverDays),
	}
}

// Window is the sales period the advisor expects sold quantities for.
func (a *Advisor) Window(now time.Time) (time.Time, time.Time) {
	return now.Add(-a.window), now
}

// Suggest scores every product that is at or below its threshold, or whose
// stock will not last the cover period at the current velocity. sold holds
// quantities sold per product id over Window.
func (a *Advisor) Suggest(products []domain.Product, sold map[string]int) []domain.RestockSuggestion {
	windowDays := a.window.Hours() / 24

	type scored struct {
		suggestion domain.RestockSuggestion
		score      float64
	}
	candidates := make([]scored, 0, len(products))

	for _, product := range products {
		velocity := float64(sold[product.ID]) / windowDays
		daysOfCover := math.Inf(1)
		if velocity > 0 {
			daysOfCover = float64(product.Stock) / velocity
		}
		if !product.LowOnStock() && daysOfCover >= a.coverDays {
			continue
		}

		target := int(math.Ceil(velocity*a.coverDays)) + product.LowStockThreshold
		qty := max(target-product.Stock, product.LowStockThreshold+1-product.Stock, 1)

		stockScore := 1 - clamp(float64(product.Stock)/float64(product.LowStockThreshold+1), 0, 1)
		velocityScore := clamp(velocity/10.0, 0, 1)
		coverScore := 0.0
		if !math.IsInf(daysOfCover, 1) {
			coverScore = 1 - clamp(daysOfCover/a.coverDays, 0, 1)
		}
		score :=
			0.45*stockScore +
				0.30*coverScore +
				0.15*velocityScore +
				0.10*marginScore(product)

		// -1 means no sales in the window.
		cover := -1.0
		if !math.IsInf(daysOfCover, 1) {
			cover = round2(daysOfCover)
		}
		candidates = append(candidates, scored{
			suggestion: domain.RestockSuggestion{
				ProductID:      product.ID,
				Name:           product.Name,
				Stock:          product.Stock,
				Threshold:      product.LowStockThreshold,
				DailyVelocity:  round2(velocity),
				DaysOfCover:    cover,
				RecommendedQty: qty,
				EstimatedCost:  money.Times(product.Cost, qty),
				Urgency:        urgency(product.Stock, score),
			},
			score: score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].suggestion.Name < candidates[j].suggestion.Name
	})

	out := make([]domain.RestockSuggestion, len(candidates))
	for i, c := range candidates {
		out[i] = c.suggestion
	}
	return out
}

func urgency(stock int, score float64) string {
	switch {
	case stock <= 0 || score >= 0.70:
		return UrgencyCritical
	case score >= 0.45:
		return UrgencyHigh
	default:
		return UrgencyNormal
	}
}

func marginScore(product domain.Product) float64 {
	if !product.Price.IsPositive() {
		return 0
	}
	rate, _ := product.Price.Sub(product.Cost).Div(product.Price).Float64()
	return clamp(rate/0.40, 0, 1)
}

func clamp(val float64, minVal float64, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func round2(val float64) float64 {
	return math.Round(val*100) / 100
}
