// Package portfolio computes aggregate statistics over cached account
// data: global totals, weighted performance, per-asset-class breakdowns
// and top/worst performers.
package portfolio

import "oddogate/internal/domain"

// AccountStats summarizes one account's positions.
type AccountStats struct {
	TotalPMVL           float64               `json:"totalPMVL"`
	WeightedPerformance float64               `json:"weightedPerformance"`
	TotalWeight         float64               `json:"totalWeight"`
	PositionsCount      int                   `json:"positionsCount"`
	Formatted           AccountStatsFormatted `json:"formatted"`
}

// AccountStatsFormatted is the display block of AccountStats.
type AccountStatsFormatted struct {
	TotalPMVL           string `json:"totalPMVL"`
	WeightedPerformance string `json:"weightedPerformance"`
	PMVLColor           string `json:"pmvlColor"`
	PerformanceColor    string `json:"performanceColor"`
}

// AccountWithStats is an account enriched with its statistics block.
type AccountWithStats struct {
	domain.AccountWithPositions
	Stats AccountStats `json:"stats"`
}

// AssetClassStats aggregates the positions of one asset class.
type AssetClassStats struct {
	TotalValue          float64                  `json:"totalValue"`
	TotalWeight         float64                  `json:"totalWeight"`
	WeightedPerformance float64                  `json:"weightedPerformance"`
	PositionsCount      int                      `json:"positionsCount"`
	AveragePerformance  float64                  `json:"averagePerformance"`
	Formatted           AssetClassStatsFormatted `json:"formatted"`
}

// AssetClassStatsFormatted is the display block of AssetClassStats.
type AssetClassStatsFormatted struct {
	AveragePerformance string `json:"averagePerformance"`
	TotalValue         string `json:"totalValue"`
	PerformanceColor   string `json:"performanceColor"`
}

// Performer is one entry in the top/worst performer lists.
type Performer struct {
	ISINCode                   string             `json:"isinCode"`
	LibInstrument              string             `json:"libInstrument"`
	Performance                float64            `json:"performance"`
	ValeurMarcheDeviseSecurite float64            `json:"valeurMarcheDeviseSecurite"`
	WeightMinute               float64            `json:"weightMinute"`
	AccountNumber              string             `json:"accountNumber"`
	ClassActif                 string             `json:"classActif"`
	Formatted                  PerformerFormatted `json:"formatted"`
}

// PerformerFormatted is the display block of a Performer.
type PerformerFormatted struct {
	Performance      string `json:"performance"`
	Value            string `json:"value"`
	Weight           string `json:"weight"`
	PerformanceColor string `json:"performanceColor"`
}

// Stats is the portfolio-wide aggregate.
type Stats struct {
	TotalValue              float64                    `json:"totalValue"`
	TotalPMVL               float64                    `json:"totalPMVL"`
	TotalPMVR               float64                    `json:"totalPMVR"`
	WeightedPerformance     float64                    `json:"weightedPerformance"`
	TotalWeight             float64                    `json:"totalWeight"`
	PositionsCount          int                        `json:"positionsCount"`
	AccountsCount           int                        `json:"accountsCount"`
	PerformanceByAssetClass map[string]AssetClassStats `json:"performanceByAssetClass"`
	TopPerformers           []Performer                `json:"topPerformers"`
	WorstPerformers         []Performer                `json:"worstPerformers"`
	LastUpdate              string                     `json:"lastUpdate"`
	Formatted               StatsFormatted             `json:"formatted"`
}

// StatsFormatted is the display block of Stats.
type StatsFormatted struct {
	TotalValue          string `json:"totalValue"`
	TotalPMVL           string `json:"totalPMVL"`
	WeightedPerformance string `json:"weightedPerformance"`
	PMVLColor           string `json:"pmvlColor"`
	PerformanceColor    string `json:"performanceColor"`
}

// Overview is the full response for the accounts view: the enriched
// accounts plus the portfolio-wide aggregate.
type Overview struct {
	Accounts  []AccountWithStats `json:"accounts"`
	Portfolio Stats              `json:"portfolio"`
}
