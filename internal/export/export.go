// Package export writes estimates and saved quotes as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/renoprice/internal/pricing"
	"github.com/Simplici0/renoprice/internal/store"
)

// Row is one exported estimate line. QuoteID, CreatedAt and Title are empty for estimates
// that were not persisted.
type Row struct {
	QuoteID   string
	CreatedAt string
	Title     string
	Estimate  pricing.Estimate
}

var header = []string{
	"quote_id", "created_at", "title", "job_type", "region", "quantity", "unit_key", "unit_price",
	"rate_source", "labor", "materials", "modifiers", "subtotal", "tax", "total", "currency",
	"est_days_low", "est_days_high",
}

// QuoteRows converts saved quotes into export rows, keeping their order.
func QuoteRows(quotes []store.Quote) []Row {
	rows := make([]Row, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, Row{QuoteID: q.ID, CreatedAt: q.CreatedAt, Title: q.Title, Estimate: q.Estimate})
	}
	return rows
}

// EstimateRows wraps unsaved estimates as export rows.
func EstimateRows(lines []pricing.Estimate) []Row {
	rows := make([]Row, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, Row{Estimate: l})
	}
	return rows
}

func (r Row) record() []string {
	e := r.Estimate
	return []string{
		r.QuoteID,
		r.CreatedAt,
		r.Title,
		e.JobType,
		e.Region,
		decimal.NewFromFloat(e.Quantity).String(),
		string(e.UnitKey),
		money(e.UnitPrice),
		e.RateSource,
		money(e.Labor),
		money(e.Materials),
		modifiers(e.Modifiers),
		money(e.Subtotal),
		money(e.Tax),
		money(e.Total),
		e.Currency,
		strconv.Itoa(e.EstDaysLow),
		strconv.Itoa(e.EstDaysHigh),
	}
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, r := range rows {
		records = append(records, r.record())
	}
	return writeRecords(w, records)
}

// WriteBatchCSV writes the batch lines followed by the aggregate totals.
func WriteBatchCSV(w io.Writer, res pricing.BatchResult) error {
	records := make([][]string, 0, len(res.Lines)+8)
	records = append(records, header)
	for _, r := range EstimateRows(res.Lines) {
		records = append(records, r.record())
	}
	records = append(records,
		[]string{"summary", "value"},
		[]string{"trade_count", strconv.Itoa(res.TradeCount)},
		[]string{"duration_policy", string(res.Policy)},
		[]string{"overlap_factor", decimal.NewFromFloat(res.OverlapFactor).String()},
		[]string{"total_subtotal", money(res.TotalSubtotal)},
		[]string{"total_tax", money(res.TotalTax)},
		[]string{"total", money(res.TotalTotal)},
		[]string{"est_days", decimal.NewFromFloat(res.EstDaysLow).String() + "-" + decimal.NewFromFloat(res.EstDaysHigh).String()},
	)
	return writeRecords(w, records)
}

func writeRecords(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func modifiers(mods []pricing.Modifier) string {
	parts := make([]string, 0, len(mods))
	for _, m := range mods {
		parts = append(parts, m.Name+"="+strconv.FormatFloat(m.Factor, 'f', -1, 64))
	}
	return strings.Join(parts, ";")
}
