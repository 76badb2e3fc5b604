package servicenow

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StateNames maps incident state codes to labels.
var StateNames = map[string]string{
	"1": "New 🆕",
	"2": "In Progress 🚧",
	"3": "On Hold ⏸️",
	"4": "Awaiting User Info ℹ️",
	"5": "Awaiting Problem ❓",
	"6": "Resolved ✅",
	"7": "Closed 🔒",
}

// PriorityNames maps incident priority codes to labels.
var PriorityNames = map[string]string{
	"1": "Critical 🔴",
	"2": "High 🟠",
	"3": "Moderate 🟡",
	"4": "Low 🟢",
	"5": "Planning 🔵",
}

var fieldLabels = map[string]string{
	"number":             "Incident Number",
	"short_description":  "Short Description",
	"description":        "Description",
	"state":              "State",
	"priority":           "Priority",
	"assignment_group":   "Assignment Group",
	"caller_id":          "Caller",
	"sys_created_on":     "Created On",
	"opened_at":          "Opened At",
	"resolved_at":        "Resolved At",
	"closed_at":          "Closed At",
	"category":           "Category",
	"subcategory":        "Subcategory",
	"severity":           "Severity",
	"impact":             "Impact",
	"urgency":            "Urgency",
	"assigned_to":        "Assigned To",
	"resolution_notes":   "Resolution Notes",
	"close_notes":        "Close Notes",
	"close_code":         "Close Code",
	"resolution_code":    "Resolution Code",
	"business_service":   "Business Service",
	"configuration_item": "Configuration Item",
	"watch_list":         "Watch List",
	"active":             "Active",
	"reopened_count":     "Reopened Count",
	"reassignment_count": "Reassignment Count",
	"comments":           "Comments",
	"work_notes":         "Work Notes",
}

func sortedLabels() []string {
	names := make([]string, 0, len(fieldLabels))
	for name := range fieldLabels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// label returns the heading for a field name.
func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Title(language.English).String(strings.ReplaceAll(field, "_", " "))
}

// display renders one field of r, mapping state and priority codes to
// their labels.
func display(r Record, field string) string {
	var names map[string]string
	switch field {
	case "state":
		names = StateNames
	case "priority":
		names = PriorityNames
	default:
		return r.Display(field)
	}

	raw := r.Value(field)
	if name, ok := names[raw]; ok {
		return name
	}
	if d := r.Display(field); d != "" && d != raw {
		return d
	}
	if raw == "" {
		return ""
	}
	return fmt.Sprintf("Unknown (%s)", raw)
}

func formatHuman(r Record, fields []string, verbose bool) string {
	lines := []string{"📋 **Incident Details**", ""}
	for _, field := range fields {
		if _, ok := r[field]; !ok {
			continue
		}
		value := display(r, field)
		if value == "" || value == "N/A" {
			continue
		}
		if raw := r.Value(field); verbose && raw != "" && raw != value {
			value += fmt.Sprintf(" (%s)", raw)
		}
		lines = append(lines, fmt.Sprintf("• **%s**: %s", label(field), value))
	}
	return strings.Join(lines, "\n")
}

func formatMinimal(r Record) string {
	return fmt.Sprintf("%s: %s | %s",
		orNA(display(r, "number")),
		orNA(display(r, "short_description")),
		orNA(display(r, "state")),
	)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

var (
	markup     = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

const summaryLimit = 250

// summarize reduces an HTML article body to plain text of at most 250
// characters, marking truncation with an ellipsis.
func summarize(body string) string {
	text := markup.ReplaceAllString(body, " ")
	text = strings.TrimSpace(whitespace.ReplaceAllString(html.UnescapeString(text), " "))

	if utf8.RuneCountInString(text) < 10 {
		return "No detailed content available."
	}
	if utf8.RuneCountInString(text) <= summaryLimit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:summaryLimit])) + "..."
}
