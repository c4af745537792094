// Package pipeline implements the Fetch -> Clean -> Validate -> Load batch run.
package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gmorse81/uk-hpi-service/internal/hpi"
)

// Source CSV headers as published by HM Land Registry.
const (
	colDate         = "Date"
	colRegionName   = "RegionName"
	colAveragePrice = "AveragePrice"
	colIndex        = "Index"
)

// Salary sheet headers.
const (
	colSalaryRegion = "RegionName"
	colSalaryValue  = "AverageAnnualSalary"
)

// dateLayouts are the formats seen in the published files. The full file uses
// DD/MM/YYYY; extracts exported from the ONS portal use ISO dates.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "01/2006"}

// CleanReport counts what the cleaner did with the raw rows.
type CleanReport struct {
	RowsIn      int
	RowsKept    int
	BadDates    int
	MissingData int
	BadNumbers  int
}

// Dropped is the total number of rows excluded by the cleaner.
func (r CleanReport) Dropped() int {
	return r.BadDates + r.MissingData + r.BadNumbers
}

// Cleaner turns raw CSV bytes into structurally clean price records.
type Cleaner struct {
	logger *zap.Logger
}

// NewCleaner creates a Cleaner.
func NewCleaner(logger *zap.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean selects the Date/RegionName/AveragePrice/Index columns, parses them,
// and drops any row with an unparseable date, a missing required field, or an
// unparseable numeric. Row-level failures are counted, never fatal; a missing
// header column is fatal because the whole file is unusable.
func (c *Cleaner) Clean(raw []byte) ([]hpi.PriceRecord, CleanReport, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, CleanReport{}, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := locateColumns(header, colDate, colRegionName, colAveragePrice, colIndex)
	if err != nil {
		return nil, CleanReport{}, err
	}

	var (
		report  CleanReport
		records []hpi.PriceRecord
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed line; drop it like any other bad row.
			report.RowsIn++
			report.MissingData++
			continue
		}
		report.RowsIn++

		rec, drop := c.cleanRow(row, cols, &report)
		if drop {
			continue
		}
		records = append(records, rec)
		report.RowsKept++
	}

	if report.Dropped() > 0 {
		c.logger.Warn("Cleaner dropped rows",
			zap.Int("bad_dates", report.BadDates),
			zap.Int("missing_data", report.MissingData),
			zap.Int("bad_numbers", report.BadNumbers),
		)
	}
	return records, report, nil
}

func (c *Cleaner) cleanRow(row []string, cols map[string]int, report *CleanReport) (hpi.PriceRecord, bool) {
	region := strings.TrimSpace(field(row, cols[colRegionName]))
	rawDate := strings.TrimSpace(field(row, cols[colDate]))
	rawPrice := strings.TrimSpace(field(row, cols[colAveragePrice]))
	rawIndex := strings.TrimSpace(field(row, cols[colIndex]))

	if region == "" || rawPrice == "" || rawIndex == "" {
		report.MissingData++
		return hpi.PriceRecord{}, true
	}

	date, ok := parseDate(rawDate)
	if !ok {
		report.BadDates++
		return hpi.PriceRecord{}, true
	}

	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		report.BadNumbers++
		return hpi.PriceRecord{}, true
	}
	index, err := decimal.NewFromString(rawIndex)
	if err != nil {
		report.BadNumbers++
		return hpi.PriceRecord{}, true
	}

	return hpi.PriceRecord{
		Region:       region,
		Date:         date,
		AveragePrice: price,
		Index:        index,
	}, false
}

// CleanSalaries parses the optional salary sheet into a region -> salary map.
// Same drop semantics as Clean.
func (c *Cleaner) CleanSalaries(raw []byte) (map[string]decimal.Decimal, CleanReport, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, CleanReport{}, fmt.Errorf("read salary csv header: %w", err)
	}
	cols, err := locateColumns(header, colSalaryRegion, colSalaryValue)
	if err != nil {
		return nil, CleanReport{}, err
	}

	var report CleanReport
	salaries := make(map[string]decimal.Decimal)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.RowsIn++
			report.MissingData++
			continue
		}
		report.RowsIn++

		region := strings.TrimSpace(field(row, cols[colSalaryRegion]))
		rawSalary := strings.TrimSpace(field(row, cols[colSalaryValue]))
		if region == "" || rawSalary == "" {
			report.MissingData++
			continue
		}
		salary, err := decimal.NewFromString(rawSalary)
		if err != nil {
			report.BadNumbers++
			continue
		}
		salaries[region] = salary
		report.RowsKept++
	}
	return salaries, report, nil
}

func locateColumns(header []string, names ...string) (map[string]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.TrimSpace(h)] = i
	}
	cols := make(map[string]int, len(names))
	for _, name := range names {
		idx, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("source csv is missing column %q", name)
		}
		cols[name] = idx
	}
	return cols, nil
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
