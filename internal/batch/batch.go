// Package batch evaluates lab results uploaded as CSV rows of
// (hn_number, lab_item_name, lab_item_value). Rows are grouped per patient and every
// panel whose required items are all present is classified.
package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/liamcoop/labrules/internal/logger"
	"github.com/liamcoop/labrules/rules"
)

// Column names expected in the CSV header
const (
	ColumnHN    = "hn_number"
	ColumnItem  = "lab_item_name"
	ColumnValue = "lab_item_value"
)

const genderItem = "Gender"

// ErrBadHeader is returned when the CSV header lacks a required column
var ErrBadHeader = errors.New("csv header must contain hn_number, lab_item_name and lab_item_value")

// Skipped describes a row that was not used
type Skipped struct {
	Line   int    `json:"line"`
	HN     string `json:"hnNumber,omitempty"`
	Item   string `json:"labItemName,omitempty"`
	Reason string `json:"reason"`
}

// ItemStatus is the resolved status of one uploaded lab item
type ItemStatus struct {
	Name   string  `json:"labItemName"`
	Value  float64 `json:"labItemValue"`
	Status string  `json:"status"`
}

// PanelReport is the outcome of one evaluated panel
type PanelReport struct {
	TestID int                `json:"testId"`
	Name   string             `json:"name"`
	Result *rules.PanelResult `json:"result"`
	Items  []ItemStatus       `json:"items"`
}

// Incomplete names a panel that had some but not all of its items
type Incomplete struct {
	TestID  int      `json:"testId"`
	Name    string   `json:"name"`
	Missing []string `json:"missing"`
}

// PatientReport groups the panels evaluated for one HN
type PatientReport struct {
	HN         string        `json:"hnNumber"`
	Panels     []PanelReport `json:"panels"`
	Incomplete []Incomplete  `json:"incomplete,omitempty"`
}

// Report is the result of one batch
type Report struct {
	ID       uuid.UUID       `json:"batchId"`
	Rows     int             `json:"rows"`
	Patients []PatientReport `json:"patients"`
	Skipped  []Skipped       `json:"skipped,omitempty"`
}

// Evaluator runs batches against an engine
type Evaluator struct {
	engine *rules.Engine
	items  map[string]struct{}
}

// NewEvaluator creates a batch evaluator. Only items some panel reads are accepted.
func NewEvaluator(engine *rules.Engine) *Evaluator {
	items := map[string]struct{}{}
	for _, p := range engine.Panels() {
		for _, f := range p.Fields {
			items[f.Key] = struct{}{}
		}
	}
	return &Evaluator{engine: engine, items: items}
}

type patient struct {
	hn     string
	values rules.Measurements
}

// Run reads the CSV from r and evaluates every complete panel per patient
func (e *Evaluator) Run(ctx context.Context, r io.Reader) (*Report, error) {
	report := &Report{ID: uuid.New(), Patients: []PatientReport{}}

	patients, err := e.group(r, report)
	if err != nil {
		return nil, err
	}

	for _, p := range patients {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch %s cancelled: %w", report.ID, err)
		}

		pr, err := e.evaluatePatient(p)
		if err != nil {
			return nil, fmt.Errorf("patient %s: %w", p.hn, err)
		}
		report.Patients = append(report.Patients, pr)
	}

	logger.Info("batch evaluated",
		"batch_id", report.ID.String(),
		"rows", report.Rows,
		"patients", len(report.Patients),
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// group parses the rows and collects each patient's values in first-seen order
func (e *Evaluator) group(r io.Reader, report *Report) ([]*patient, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrBadHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		cols[name] = i
	}
	hnCol, okHN := cols[ColumnHN]
	itemCol, okItem := cols[ColumnItem]
	valueCol, okValue := cols[ColumnValue]
	if !okHN || !okItem || !okValue {
		return nil, ErrBadHeader
	}

	var order []*patient
	byHN := map[string]*patient{}
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		report.Rows++

		field := func(i int) string {
			if i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		hn, item, raw := field(hnCol), field(itemCol), field(valueCol)

		skip := func(reason string) {
			logger.BatchRowsSkipped.Add(1)
			logger.Warn("skipping batch row", "batch_id", report.ID.String(), "line", line, "reason", reason)
			report.Skipped = append(report.Skipped, Skipped{Line: line, HN: hn, Item: item, Reason: reason})
		}

		if hn == "" || item == "" {
			skip("hn_number and lab_item_name are required")
			continue
		}

		if _, ok := e.items[item]; !ok {
			skip(fmt.Sprintf("unknown lab item %q", item))
			continue
		}

		var value any
		if item == genderItem {
			g, ok := normalizeGender(raw)
			if !ok {
				skip(fmt.Sprintf("invalid gender value %q", raw))
				continue
			}
			value = g
		} else {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				skip(fmt.Sprintf("invalid numeric value %q", raw))
				continue
			}
			value = f
		}

		p, ok := byHN[hn]
		if !ok {
			p = &patient{hn: hn, values: rules.Measurements{}}
			byHN[hn] = p
			order = append(order, p)
		}
		p.values[item] = value
	}

	return order, nil
}

func normalizeGender(raw string) (string, bool) {
	switch raw {
	case "M", "m":
		return "M", true
	case "F", "f":
		return "F", true
	default:
		return "", false
	}
}

func (e *Evaluator) evaluatePatient(p *patient) (PatientReport, error) {
	pr := PatientReport{HN: p.hn, Panels: []PanelReport{}}

	for _, panel := range e.engine.Panels() {
		var missing []string
		touched := false
		for _, f := range panel.Fields {
			if _, ok := p.values[f.Key]; !ok {
				missing = append(missing, f.Key)
			} else if f.Key != genderItem {
				touched = true
			}
		}

		if len(missing) > 0 {
			if touched {
				pr.Incomplete = append(pr.Incomplete, Incomplete{
					TestID:  int(panel.Kind),
					Name:    panel.Name,
					Missing: missing,
				})
			}
			continue
		}

		result, err := e.engine.EvaluatePanel(panel.Kind, p.values)
		if err != nil {
			return PatientReport{}, err
		}
		logger.Evaluations.Add(1)

		report := PanelReport{
			TestID: int(panel.Kind),
			Name:   panel.Name,
			Result: result,
		}
		for _, f := range panel.Fields {
			if f.Key == genderItem {
				continue
			}
			value, _ := p.values[f.Key].(float64)
			report.Items = append(report.Items, ItemStatus{
				Name:   f.Key,
				Value:  value,
				Status: result.StatusFor(f.Key),
			})
		}
		pr.Panels = append(pr.Panels, report)
	}

	return pr, nil
}
