package contracts

import (
	"fmt"
	"strings"
)

// Metric identifies one quality-of-life index column.
// The string value is the stable column name of the persisted dataset.
type Metric string

const (
	MetricQualityOfLife         Metric = "quality_of_life_index"
	MetricPurchasingPower       Metric = "purchasing_power_index"
	MetricSafety                Metric = "safety_index"
	MetricHealthCare            Metric = "health_care_index"
	MetricCostOfLiving          Metric = "cost_of_living_index"
	MetricPropertyPriceToIncome Metric = "property_price_to_income_ratio"
	MetricTrafficCommuteTime    Metric = "traffic_commute_time_index"
	MetricPollution             Metric = "pollution_index"
	MetricClimate               Metric = "climate_index"
)

// AllMetrics lists every metric in dataset column order
var AllMetrics = []Metric{
	MetricQualityOfLife,
	MetricPurchasingPower,
	MetricSafety,
	MetricHealthCare,
	MetricCostOfLiving,
	MetricPropertyPriceToIncome,
	MetricTrafficCommuteTime,
	MetricPollution,
	MetricClimate,
}

// DashboardMetrics are the metrics offered for charting.
// The overall index is a composite of the others and is not charted.
var DashboardMetrics = []Metric{
	MetricPurchasingPower,
	MetricSafety,
	MetricHealthCare,
	MetricCostOfLiving,
	MetricPropertyPriceToIncome,
	MetricTrafficCommuteTime,
	MetricPollution,
	MetricClimate,
}

var metricLabels = map[Metric]string{
	MetricQualityOfLife:         "Quality of Life Index",
	MetricPurchasingPower:       "Purchasing Power Index",
	MetricSafety:                "Safety Index",
	MetricHealthCare:            "Health Care Index",
	MetricCostOfLiving:          "Cost of Living Index",
	MetricPropertyPriceToIncome: "Property Price to Income Ratio",
	MetricTrafficCommuteTime:    "Traffic Commute Time Index",
	MetricPollution:             "Pollution Index",
	MetricClimate:               "Climate Index",
}

// Label returns the human-readable name used by the ranking source
func (m Metric) Label() string {
	if label, ok := metricLabels[m]; ok {
		return label
	}
	return string(m)
}

// Valid reports whether m is one of the known metrics
func (m Metric) Valid() bool {
	_, ok := metricLabels[m]
	return ok
}

// ParseMetric accepts either the column name or the label (case-insensitive)
func ParseMetric(s string) (Metric, error) {
	s = strings.TrimSpace(s)
	for _, m := range AllMetrics {
		if strings.EqualFold(s, string(m)) || strings.EqualFold(s, m.Label()) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric: %q", s)
}

// Direction tells which end of a metric's scale is better
type Direction string

const (
	HigherIsBetter Direction = "higher"
	LowerIsBetter  Direction = "lower"
)

// MetricDirections is the fixed per-metric direction table.
// ⭐ SSOT: rank direction for every metric is declared here only
var MetricDirections = map[Metric]Direction{
	MetricQualityOfLife:         HigherIsBetter,
	MetricPurchasingPower:       HigherIsBetter,
	MetricSafety:                HigherIsBetter,
	MetricHealthCare:            HigherIsBetter,
	MetricCostOfLiving:          LowerIsBetter,
	MetricPropertyPriceToIncome: LowerIsBetter,
	MetricTrafficCommuteTime:    LowerIsBetter,
	MetricPollution:             LowerIsBetter,
	MetricClimate:               HigherIsBetter,
}

// DirectionOf looks up the rank direction of m
func DirectionOf(m Metric) (Direction, bool) {
	d, ok := MetricDirections[m]
	return d, ok
}
