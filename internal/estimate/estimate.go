// Package estimate prices pipeline steps against the configured cost table.
package estimate

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/smallbiznis/creditd/internal/config"
)

// DefaultBucket prices any step missing from the cost table.
const DefaultBucket = "DEFAULT"

var Module = fx.Module("estimate",
	fx.Provide(func(cfg config.Config) *Estimator {
		return NewEstimator(cfg.StepCosts)
	}),
)

// Estimate is a priced pipeline. Duplicate steps are counted multiply in
// EstimatedCredits but collapse into one Breakdown entry; the total is the
// authoritative number.
type Estimate struct {
	EstimatedCredits decimal.Decimal            `json:"estimated_credits"`
	Breakdown        map[string]decimal.Decimal `json:"breakdown"`
}

// Estimator is a pure calculator, no storage access.
type Estimator struct {
	costs map[string]decimal.Decimal
}

func NewEstimator(costs map[string]decimal.Decimal) *Estimator {
	normalized := make(map[string]decimal.Decimal, len(costs))
	for name, cost := range costs {
		normalized[strings.ToUpper(name)] = cost
	}
	return &Estimator{costs: normalized}
}

// Cost returns the unit price for one step.
func (e *Estimator) Cost(step string) decimal.Decimal {
	if cost, ok := e.costs[strings.ToUpper(step)]; ok {
		return cost
	}
	return e.costs[DefaultBucket]
}

// EstimateCost prices the given steps. An empty list yields zero.
func (e *Estimator) EstimateCost(steps []string) Estimate {
	total := decimal.Zero
	breakdown := make(map[string]decimal.Decimal, len(steps))
	for _, step := range steps {
		cost := e.Cost(step)
		total = total.Add(cost)
		breakdown[strings.ToUpper(step)] = cost
	}
	return Estimate{EstimatedCredits: total, Breakdown: breakdown}
}
