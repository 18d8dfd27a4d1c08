// Package analytics computes descriptive statistics over a loaded
// dataset and turns them into the value map the presentation engine
// substitutes into templates.
package analytics

import (
	"fmt"
	"sort"

	"github.com/cortexbi/cortexbi/internal/dataset"
)

// PeriodStats describes one period in a comparison.
type PeriodStats struct {
	Period string  `json:"period"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Count  int     `json:"count"`
}

// PeriodComparison is the result of ComparePeriods.
type PeriodComparison struct {
	PeriodColumn string        `json:"period_column"`
	ValueColumn  string        `json:"value_column"`
	Periods      []PeriodStats `json:"periods"`
	GrowthPct    float64       `json:"growth_pct"` // first period to last
}

// ComparePeriods groups the value column by period (first-seen order) and
// reports totals, means and the growth between the first and last period.
func ComparePeriods(frame *dataset.Frame, periodCol, valueCol string) (*PeriodComparison, error) {
	keys, groups, err := frame.GroupBy(periodCol)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no rows to compare in column %q", periodCol)
	}
	result := &PeriodComparison{PeriodColumn: periodCol, ValueColumn: valueCol}
	for _, key := range keys {
		values, err := groups[key].Floats(valueCol)
		if err != nil {
			return nil, err
		}
		result.Periods = append(result.Periods, PeriodStats{
			Period: key,
			Total:  sum(values),
			Mean:   mean(values),
			Count:  len(values),
		})
	}
	first := result.Periods[0].Total
	last := result.Periods[len(result.Periods)-1].Total
	if first != 0 {
		result.GrowthPct = (last - first) / first * 100
	}
	return result, nil
}

// Values renders the comparison as substitution values.
func (c *PeriodComparison) Values() map[string]interface{} {
	values := map[string]interface{}{
		"crescimento": FormatPercent(c.GrowthPct),
	}
	for _, p := range c.Periods {
		values["total_"+p.Period] = FormatNumber(p.Total)
		values["media_"+p.Period] = FormatNumber(p.Mean)
	}
	if n := len(c.Periods); n > 0 {
		values["periodo_inicial"] = c.Periods[0].Period
		values["periodo_final"] = c.Periods[n-1].Period
		values["total_inicial"] = FormatNumber(c.Periods[0].Total)
		values["total_final"] = FormatNumber(c.Periods[n-1].Total)
	}
	return values
}

// SegmentStats describes one group in a segmentation.
type SegmentStats struct {
	Group    string  `json:"group"`
	Total    float64 `json:"total"`
	Mean     float64 `json:"mean"`
	Count    int     `json:"count"`
	SharePct float64 `json:"share_pct"`
}

// Segmentation is the result of SegmentByGroups, ordered by total
// descending.
type Segmentation struct {
	GroupColumn string         `json:"group_column"`
	ValueColumn string         `json:"value_column"`
	Segments    []SegmentStats `json:"segments"`
	GrandTotal  float64        `json:"grand_total"`
}

// SegmentByGroups totals the value column per distinct group value.
func SegmentByGroups(frame *dataset.Frame, groupCol, valueCol string) (*Segmentation, error) {
	keys, groups, err := frame.GroupBy(groupCol)
	if err != nil {
		return nil, err
	}
	result := &Segmentation{GroupColumn: groupCol, ValueColumn: valueCol}
	for _, key := range keys {
		values, err := groups[key].Floats(valueCol)
		if err != nil {
			return nil, err
		}
		total := sum(values)
		result.GrandTotal += total
		result.Segments = append(result.Segments, SegmentStats{
			Group: key,
			Total: total,
			Mean:  mean(values),
			Count: len(values),
		})
	}
	for i := range result.Segments {
		if result.GrandTotal != 0 {
			result.Segments[i].SharePct = result.Segments[i].Total / result.GrandTotal * 100
		}
	}
	sort.SliceStable(result.Segments, func(i, j int) bool {
		return result.Segments[i].Total > result.Segments[j].Total
	})
	return result, nil
}

// Values renders the segmentation as substitution values; segment names
// key the per-group totals.
func (s *Segmentation) Values() map[string]interface{} {
	values := map[string]interface{}{
		"total_geral": FormatNumber(s.GrandTotal),
	}
	for _, seg := range s.Segments {
		values["total_"+seg.Group] = FormatNumber(seg.Total)
		values["participacao_"+seg.Group] = FormatPercent(seg.SharePct)
	}
	if len(s.Segments) > 0 {
		values["maior_grupo"] = s.Segments[0].Group
		values["maior_total"] = FormatNumber(s.Segments[0].Total)
	}
	return values
}

// ReasonCount is one distinct value and how often it occurs.
type ReasonCount struct {
	Reason string  `json:"reason"`
	Count  int     `json:"count"`
	Pct    float64 `json:"pct"`
}

// ReasonBreakdown is the result of CountReasons, ordered by count
// descending with ties in first-seen order.
type ReasonBreakdown struct {
	Column  string        `json:"column"`
	Total   int           `json:"total"`
	Reasons []ReasonCount `json:"reasons"`
}

// CountReasons tallies the distinct values of a categorical column.
// Empty cells are excluded.
func CountReasons(frame *dataset.Frame, col string) (*ReasonBreakdown, error) {
	cells, err := frame.Strings(col)
	if err != nil {
		return nil, err
	}
	var order []string
	counts := make(map[string]int)
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		if counts[cell] == 0 {
			order = append(order, cell)
		}
		counts[cell]++
	}
	result := &ReasonBreakdown{Column: col}
	for _, reason := range order {
		result.Total += counts[reason]
	}
	for _, reason := range order {
		pct := 0.0
		if result.Total > 0 {
			pct = float64(counts[reason]) / float64(result.Total) * 100
		}
		result.Reasons = append(result.Reasons, ReasonCount{Reason: reason, Count: counts[reason], Pct: pct})
	}
	sort.SliceStable(result.Reasons, func(i, j int) bool {
		return result.Reasons[i].Count > result.Reasons[j].Count
	})
	return result, nil
}

// MostCommon returns the highest-count reason, or empty when the column
// had no data.
func (r *ReasonBreakdown) MostCommon() string {
	if len(r.Reasons) == 0 {
		return ""
	}
	return r.Reasons[0].Reason
}

// Values renders the breakdown as substitution values.
func (r *ReasonBreakdown) Values() map[string]interface{} {
	values := map[string]interface{}{
		"total_ocorrencias": r.Total,
	}
	if mc := r.MostCommon(); mc != "" {
		values["motivo_principal"] = mc
		values["motivo_principal_pct"] = FormatPercent(r.Reasons[0].Pct)
	}
	for _, reason := range r.Reasons {
		values["qtd_"+reason.Reason] = reason.Count
	}
	return values
}

// KPIReport is the result of CustomKPIs over one numeric column.
type KPIReport struct {
	Column   string  `json:"column"`
	Sum      float64 `json:"sum"`
	Mean     float64 `json:"mean"`
	Count    int     `json:"count"`
	Distinct int     `json:"distinct"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// CustomKPIs computes summary figures for a numeric column.
func CustomKPIs(frame *dataset.Frame, col string) (*KPIReport, error) {
	values, err := frame.Floats(col)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("column %q has no numeric data", col)
	}
	report := &KPIReport{
		Column: col,
		Sum:    sum(values),
		Mean:   mean(values),
		Count:  len(values),
		Min:    values[0],
		Max:    values[0],
	}
	distinct := make(map[float64]bool)
	for _, v := range values {
		distinct[v] = true
		if v < report.Min {
			report.Min = v
		}
		if v > report.Max {
			report.Max = v
		}
	}
	report.Distinct = len(distinct)
	return report, nil
}

// Values renders the KPI report as substitution values.
func (k *KPIReport) Values() map[string]interface{} {
	return map[string]interface{}{
		"soma_" + k.Column:   FormatNumber(k.Sum),
		"media_" + k.Column:  FormatNumber(k.Mean),
		"qtd_" + k.Column:    k.Count,
		"minimo_" + k.Column: FormatNumber(k.Min),
		"maximo_" + k.Column: FormatNumber(k.Max),
	}
}

// QualityIssue flags one validation finding.
type QualityIssue struct {
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// QualityReport is the result of ValidateResults.
type QualityReport struct {
	Rows   int            `json:"rows"`
	Issues []QualityIssue `json:"issues"`
	OK     bool           `json:"ok"`
}

// ValidateResults inspects a frame for conditions that make analysis
// unreliable: no rows, columns that are entirely empty, and mostly-empty
// columns.
func ValidateResults(frame *dataset.Frame) *QualityReport {
	info := frame.Info()
	report := &QualityReport{Rows: info.Rows}
	if info.Rows == 0 {
		report.Issues = append(report.Issues, QualityIssue{Message: "dataset has no rows"})
	}
	for _, col := range info.Columns {
		switch {
		case col.NonEmpty == 0:
			report.Issues = append(report.Issues, QualityIssue{
				Column:  col.Name,
				Message: "column is entirely empty",
			})
		case info.Rows > 0 && col.NonEmpty*2 < info.Rows:
			report.Issues = append(report.Issues, QualityIssue{
				Column:  col.Name,
				Message: fmt.Sprintf("column has only %d of %d values", col.NonEmpty, info.Rows),
			})
		}
	}
	report.OK = len(report.Issues) == 0
	return report
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}
