// Package hpi holds the domain types for the UK House Price Index dataset.
package hpi

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The dashboard consumes price and index values as bare JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// PriceRecord is one region/month observation from the house price index,
// optionally enriched with the average annual salary for the region.
type PriceRecord struct {
	Region       string              `json:"region_name" db:"region_name"`
	Date         time.Time           `json:"date" db:"date"`
	AveragePrice decimal.Decimal     `json:"average_price" db:"average_price"`
	Index        decimal.Decimal     `json:"index" db:"index"`
	Salary       decimal.NullDecimal `json:"average_annual_salary,omitempty" db:"average_annual_salary"`
}

// AffordabilityRatio derives price divided by salary. The second return is
// false when no salary is known or the salary is zero.
func (r PriceRecord) AffordabilityRatio() (decimal.Decimal, bool) {
	if !r.Salary.Valid || r.Salary.Decimal.IsZero() {
		return decimal.Decimal{}, false
	}
	return r.AveragePrice.Div(r.Salary.Decimal).Round(4), true
}

// RunReport summarizes one pipeline run for logging, metrics, and the
// ingest_runs audit table.
type RunReport struct {
	RunID        string    `json:"run_id" db:"id"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	FinishedAt   time.Time `json:"finished_at" db:"finished_at"`
	SourceSHA256 string    `json:"source_sha256" db:"source_sha256"`
	RowsFetched  int       `json:"rows_fetched" db:"rows_fetched"`
	RowsDropped  int       `json:"rows_dropped" db:"rows_dropped"`
	RowsRejected int       `json:"rows_rejected" db:"rows_rejected"`
	RowsLoaded   int       `json:"rows_loaded" db:"rows_loaded"`
}
