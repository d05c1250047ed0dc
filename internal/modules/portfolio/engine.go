package portfolio

import (
	"fmt"
	"math"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"oddogate/internal/domain"
)

const performerLimit = 5

const lastUpdateLayout = "2006-01-02T15:04:05"

// Engine computes portfolio statistics from account data. It never
// mutates its input.
type Engine struct {
	clock clockwork.Clock
	log   zerolog.Logger
}

// NewEngine creates a statistics engine.
func NewEngine(clock clockwork.Clock, logger zerolog.Logger) *Engine {
	return &Engine{
		clock: clock,
		log:   logger.With().Str("service", "portfolio").Logger(),
	}
}

// SetClock swaps the clock, for tests.
func (e *Engine) SetClock(clock clockwork.Clock) {
	e.clock = clock
}

type annotated struct {
	domain.Position
	accountNumber string
}

// ComputeStats builds the full overview for a set of accounts: each
// account enriched with its own stats plus the portfolio-wide
// aggregate.
func (e *Engine) ComputeStats(accounts []domain.AccountWithPositions) Overview {
	positions := make([]annotated, 0, len(accounts)*8)
	for _, acc := range accounts {
		for _, p := range acc.Positions {
			positions = append(positions, annotated{Position: p, accountNumber: acc.AccountNumber})
		}
	}

	return Overview{
		Accounts:  e.accountsWithStats(accounts),
		Portfolio: e.portfolioStats(accounts, positions),
	}
}

func (e *Engine) accountsWithStats(accounts []domain.AccountWithPositions) []AccountWithStats {
	out := make([]AccountWithStats, 0, len(accounts))
	for _, acc := range accounts {
		var totalPMVL, weightedSum, totalWeight float64
		for _, p := range acc.Positions {
			totalPMVL += p.PMVL
			weightedSum += p.Performance * p.WeightMinute
			totalWeight += p.WeightMinute
		}
		perf := 0.0
		if totalWeight > 0 {
			perf = weightedSum / totalWeight
		}
		out = append(out, AccountWithStats{
			AccountWithPositions: acc,
			Stats: AccountStats{
				TotalPMVL:           totalPMVL,
				WeightedPerformance: perf,
				TotalWeight:         totalWeight,
				PositionsCount:      len(acc.Positions),
				Formatted: AccountStatsFormatted{
					TotalPMVL:           formatSignedValue(totalPMVL),
					WeightedPerformance: formatPerformance(perf),
					PMVLColor:           performanceColor(totalPMVL),
					PerformanceColor:    performanceColor(perf),
				},
			},
		})
	}
	return out
}

type classAccumulator struct {
	totalValue  float64
	totalWeight float64
	weightedSum float64
	perfSum     float64
	count       int
}

func (e *Engine) portfolioStats(accounts []domain.AccountWithPositions, positions []annotated) Stats {
	var totalValue, totalPMVL, totalPMVR, weightedSum, totalWeight float64
	classes := make(map[string]*classAccumulator)

	for _, acc := range accounts {
		totalValue += acc.Value
	}
	for _, p := range positions {
		totalPMVL += p.PMVL
		totalPMVR += p.PMVR
		weightedSum += p.Performance * p.WeightMinute
		totalWeight += p.WeightMinute

		class := p.ReportingAssetClassCode
		if class == "" {
			class = "Unknown"
		}
		acc, ok := classes[class]
		if !ok {
			acc = &classAccumulator{}
			classes[class] = acc
		}
		acc.totalValue += p.ValeurMarcheDeviseSecurite
		acc.totalWeight += p.WeightMinute
		acc.weightedSum += p.Performance * p.WeightMinute
		acc.perfSum += p.Performance
		acc.count++
	}

	weightedPerf := 0.0
	if totalWeight > 0 {
		weightedPerf = weightedSum / totalWeight
	}

	byClass := make(map[string]AssetClassStats, len(classes))
	for class, acc := range classes {
		classPerf := 0.0
		if acc.totalWeight > 0 {
			classPerf = acc.weightedSum / acc.totalWeight
		}
		avgPerf := acc.perfSum / float64(acc.count)
		byClass[class] = AssetClassStats{
			TotalValue:          acc.totalValue,
			TotalWeight:         acc.totalWeight,
			WeightedPerformance: classPerf,
			PositionsCount:      acc.count,
			AveragePerformance:  avgPerf,
			Formatted: AssetClassStatsFormatted{
				AveragePerformance: formatPerformance(avgPerf),
				TotalValue:         formatValue(acc.totalValue),
				PerformanceColor:   performanceColor(avgPerf),
			},
		}
	}

	return Stats{
		TotalValue:              totalValue,
		TotalPMVL:               totalPMVL,
		TotalPMVR:               totalPMVR,
		WeightedPerformance:     weightedPerf,
		TotalWeight:             totalWeight,
		PositionsCount:          len(positions),
		AccountsCount:           len(accounts),
		PerformanceByAssetClass: byClass,
		TopPerformers:           e.performers(positions, true),
		WorstPerformers:         e.performers(positions, false),
		LastUpdate:              e.clock.Now().Format(lastUpdateLayout),
		Formatted: StatsFormatted{
			TotalValue:          formatValue(totalValue),
			TotalPMVL:           formatSignedValue(totalPMVL),
			WeightedPerformance: formatPerformance(weightedPerf),
			PMVLColor:           performanceColor(totalPMVL),
			PerformanceColor:    performanceColor(weightedPerf),
		},
	}
}

// performers returns the top (or worst) positions by performance. The
// sort is stable so equal performers keep their input order.
func (e *Engine) performers(positions []annotated, best bool) []Performer {
	sorted := make([]annotated, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if best {
			return sorted[i].Performance > sorted[j].Performance
		}
		return sorted[i].Performance < sorted[j].Performance
	})

	limit := performerLimit
	if len(sorted) < limit {
		limit = len(sorted)
	}
	out := make([]Performer, 0, limit)
	for _, p := range sorted[:limit] {
		out = append(out, Performer{
			ISINCode:                   p.ISINCode,
			LibInstrument:              p.LibInstrument,
			Performance:                p.Performance,
			ValeurMarcheDeviseSecurite: p.ValeurMarcheDeviseSecurite,
			WeightMinute:               p.WeightMinute,
			AccountNumber:              p.accountNumber,
			ClassActif:                 p.ClassActif,
			Formatted: PerformerFormatted{
				Performance:      formatPerformance(p.Performance),
				Value:            formatValue(p.ValeurMarcheDeviseSecurite),
				Weight:           formatWeight(p.WeightMinute),
				PerformanceColor: performanceColor(p.Performance),
			},
		})
	}
	return out
}

func formatPerformance(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return fmt.Sprintf("%+.2f%%", v)
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.2f €", v)
}

func formatSignedValue(v float64) string {
	return fmt.Sprintf("%+.2f €", v)
}

func formatWeight(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func performanceColor(v float64) string {
	if v >= 0 {
		return "green"
	}
	return "red"
}
