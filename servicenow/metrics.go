package servicenow

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const timestampLayout = time.DateTime

// Metric types accepted by get_incident_metrics.
var metricTypes = []string{"average", "median", "min", "max", "all"}

var metricTitles = map[string]string{
	"average": "⏱️  Average Resolution Time",
	"median":  "📈 Median Resolution Time",
	"min":     "⚡ Fastest Resolution Time",
	"max":     "🐢 Slowest Resolution Time",
}

// resolutionHours returns the hours from open to resolution, preferring
// opened_at and resolved_at and falling back to sys_created_on and
// closed_at. False when either end is missing or unparseable.
func resolutionHours(r Record) (float64, bool) {
	start := or(r.Value("opened_at"), r.Value("sys_created_on"))
	end := or(r.Value("resolved_at"), r.Value("closed_at"))
	if start == "" || end == "" {
		return 0, false
	}

	startAt, err := time.Parse(timestampLayout, start)
	if err != nil {
		return 0, false
	}
	endAt, err := time.Parse(timestampLayout, end)
	if err != nil {
		return 0, false
	}
	return endAt.Sub(startAt).Hours(), true
}

// ResolutionStats summarizes resolution times in hours.
type ResolutionStats struct {
	Count   int
	Average float64
	Median  float64
	Min     float64
	Max     float64
}

// Compute summarizes hours. Median is the upper middle element for an
// even count.
func Compute(hours []float64) ResolutionStats {
	if len(hours) == 0 {
		return ResolutionStats{}
	}

	sorted := append([]float64(nil), hours...)
	sort.Float64s(sorted)

	var sum float64
	for _, h := range sorted {
		sum += h
	}

	return ResolutionStats{
		Count:   len(sorted),
		Average: sum / float64(len(sorted)),
		Median:  sorted[len(sorted)/2],
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
	}
}

func (s ResolutionStats) value(metric string) float64 {
	switch metric {
	case "median":
		return s.Median
	case "min":
		return s.Min
	case "max":
		return s.Max
	default:
		return s.Average
	}
}

func stateLabel(resolutionState string) string {
	if resolutionState == "7" {
		return "Closed"
	}
	return "Resolved"
}

type metricsReport struct {
	group           string
	timeframe       string
	metric          string
	resolutionState string
	breakdown       bool
	records         []Record
}

func (m metricsReport) render() string {
	var hours []float64
	for _, r := range m.records {
		if h, ok := resolutionHours(r); ok {
			hours = append(hours, h)
		}
	}
	if len(hours) == 0 {
		return fmt.Sprintf("No incidents with complete timing data found for '%s' group in %s.", m.group, m.timeframe)
	}
	stats := Compute(hours)

	lines := []string{
		fmt.Sprintf("📊 Resolution Metrics for '%s' Group", m.group),
		fmt.Sprintf("• Timeframe: %s", m.timeframe),
		fmt.Sprintf("• Resolution State: %s (%s)", stateLabel(m.resolutionState), m.resolutionState),
		fmt.Sprintf("• Incidents Analyzed: %d of %d total", stats.Count, len(m.records)),
		"",
	}

	if m.metric == "all" {
		for _, metric := range metricTypes[:4] {
			lines = append(lines, fmt.Sprintf("%s: %.1f hours", metricTitles[metric], stats.value(metric)))
		}
	} else {
		lines = append(lines, fmt.Sprintf("%s: %.1f hours", metricTitles[m.metric], stats.value(m.metric)))
	}

	if m.breakdown {
		lines = append(lines, "", "📋 Breakdown by Priority:")
		lines = append(lines, priorityBreakdown(m.records)...)
	}
	return strings.Join(lines, "\n")
}

// priorityBreakdown lists, per priority code in ascending order, the
// incident count and the average resolution time of those with timing
// data.
func priorityBreakdown(records []Record) []string {
	type bucket struct {
		count int
		hours []float64
	}
	buckets := make(map[string]*bucket)
	for _, r := range records {
		p := or(r.Value("priority"), "unset")
		b, ok := buckets[p]
		if !ok {
			b = &bucket{}
			buckets[p] = b
		}
		b.count++
		if h, ok := resolutionHours(r); ok {
			b.hours = append(b.hours, h)
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		name := PriorityNames[k]
		if name == "" {
			name = fmt.Sprintf("Priority %s", k)
		}
		avg := "n/a"
		if len(b.hours) > 0 {
			avg = fmt.Sprintf("%.1f hours", Compute(b.hours).Average)
		}
		lines = append(lines, fmt.Sprintf("• %s: %d incidents, average %s", name, b.count, avg))
	}
	return lines
}
