package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/hpi"
)

// earliestDate bounds the plausible historical range. The published series
// starts in 1968; anything before 1900 is a parse artifact.
var earliestDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Validator applies the record schema to cleaned rows.
type Validator struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewValidator creates a Validator.
func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger, now: time.Now}
}

// ValidateRecord checks one record against the schema: non-empty region, a
// date inside the plausible historical range, and non-negative price and
// index values.
func (v *Validator) ValidateRecord(rec hpi.PriceRecord) error {
	if rec.Region == "" {
		return fmt.Errorf("region is empty")
	}
	if rec.Date.Before(earliestDate) {
		return fmt.Errorf("date %s predates the series", rec.Date.Format("2006-01-02"))
	}
	endOfYear := time.Date(v.now().Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !rec.Date.Before(endOfYear) {
		return fmt.Errorf("date %s is in the future", rec.Date.Format("2006-01-02"))
	}
	if rec.AveragePrice.IsNegative() {
		return fmt.Errorf("average_price is negative")
	}
	if rec.Index.IsNegative() {
		return fmt.Errorf("index is negative")
	}
	return nil
}

// ValidateAll filters out invalid records. Failures are counted and logged in
// aggregate, never fatal to the run.
func (v *Validator) ValidateAll(records []hpi.PriceRecord) ([]hpi.PriceRecord, int) {
	valid := make([]hpi.PriceRecord, 0, len(records))
	rejected := 0
	for _, rec := range records {
		if err := v.ValidateRecord(rec); err != nil {
			rejected++
			continue
		}
		valid = append(valid, rec)
	}
	if rejected > 0 {
		v.logger.Warn("Validation rejected rows", zap.Int("rejected", rejected))
	} else {
		v.logger.Info("Validation successful, all rows are valid")
	}
	return valid, rejected
}
