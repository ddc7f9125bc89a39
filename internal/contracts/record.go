package contracts

import "time"

// CountryYearRecord is one normalized (country, year) row of the dataset
// ⭐ SSOT: Normalizer → Aggregator → Dataset file → Dashboard
type CountryYearRecord struct {
	Country    string    `json:"country"`
	Year       int       `json:"year"`        // ranking year, not the fetch year
	ReportDate time.Time `json:"report_date"` // fetch date (provenance only)

	QualityOfLife         *float64 `json:"quality_of_life_index"`
	PurchasingPower       *float64 `json:"purchasing_power_index"`
	Safety                *float64 `json:"safety_index"`
	HealthCare            *float64 `json:"health_care_index"`
	CostOfLiving          *float64 `json:"cost_of_living_index"`
	PropertyPriceToIncome *float64 `json:"property_price_to_income_ratio"`
	TrafficCommuteTime    *float64 `json:"traffic_commute_time_index"`
	Pollution             *float64 `json:"pollution_index"`
	Climate               *float64 `json:"climate_index"`

	// Rank is only meaningful relative to the metric it was derived from
	Rank *int `json:"rank"`
}

// Value returns the metric value, nil when the source had none
func (r *CountryYearRecord) Value(m Metric) *float64 {
	if p := r.slot(m); p != nil {
		return *p
	}
	return nil
}

// SetValue stores v (nil for "not available") under metric m.
// Unknown metrics are ignored.
func (r *CountryYearRecord) SetValue(m Metric, v *float64) {
	if p := r.slot(m); p != nil {
		*p = v
	}
}

func (r *CountryYearRecord) slot(m Metric) **float64 {
	switch m {
	case MetricQualityOfLife:
		return &r.QualityOfLife
	case MetricPurchasingPower:
		return &r.PurchasingPower
	case MetricSafety:
		return &r.Safety
	case MetricHealthCare:
		return &r.HealthCare
	case MetricCostOfLiving:
		return &r.CostOfLiving
	case MetricPropertyPriceToIncome:
		return &r.PropertyPriceToIncome
	case MetricTrafficCommuteTime:
		return &r.TrafficCommuteTime
	case MetricPollution:
		return &r.Pollution
	case MetricClimate:
		return &r.Climate
	}
	return nil
}

// Clone returns a deep copy, so callers can re-rank without touching the original
func (r *CountryYearRecord) Clone() *CountryYearRecord {
	c := *r
	for _, m := range AllMetrics {
		if v := r.Value(m); v != nil {
			c.SetValue(m, Float(*v))
		}
	}
	if r.Rank != nil {
		c.Rank = Int(*r.Rank)
	}
	return &c
}

// Float returns a pointer to v
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }
