package servicenow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	orchestrate "github.com/tailored-agentic-units/incidentdesk/orchestrate/config"
	"github.com/tailored-agentic-units/incidentdesk/orchestrate/workflows"
	"github.com/tailored-agentic-units/incidentdesk/tools"
)

const (
	tableIncident = "incident"
	tableUser     = "sys_user"
	tableGroup    = "sys_user_group"
	tableKB       = "kb_knowledge"
)

// CloseCodes are the close codes resolve_incident accepts.
var CloseCodes = []string{
	"Duplicate",
	"Known error",
	"No resolution provided",
	"Resolved by caller",
	"Resolved by change",
	"Resolved by problem",
	"Resolved by request",
	"Solution provided",
	"Workaround provided",
	"User error",
}

var (
	detailFields   = []string{"number", "short_description", "description", "state", "priority", "assignment_group", "caller_id", "sys_created_on"}
	summaryFields  = []string{"number", "short_description", "description", "state", "assignment_group", "caller_id"}
	groupListShown = []string{"number", "short_description", "state", "priority", "opened_at"}

	stateCodes    = []string{"1", "2", "3", "4", "5", "6", "7"}
	priorityCodes = []string{"1", "2", "3", "4", "5"}

	sortOrders = map[string]string{
		"newest":        "ORDERBYDESCopened_at",
		"oldest":        "ORDERBYopened_at",
		"priority_high": "ORDERBYpriority^ORDERBYDESCopened_at",
		"priority_low":  "ORDERBYDESCpriority^ORDERBYDESCopened_at",
	}
)

// Toolset implements the incident tools over a Client.
type Toolset struct {
	client *Client
	fetch  orchestrate.ParallelConfig
}

// NewToolset creates the tools for client. get_multiple_incidents fetches
// on a pool bounded by the client's MaxFetchWorkers.
func NewToolset(client *Client) *Toolset {
	fetch := orchestrate.DefaultParallelConfig()
	fetch.MaxWorkers = client.Config().MaxFetchWorkers
	return &Toolset{client: client, fetch: fetch}
}

// Register adds every tool to reg.
func (t *Toolset) Register(reg *tools.Registry) error {
	for _, spec := range t.Specs() {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

func incidentNumber(description string) tools.Field {
	return tools.Field{
		Name:        "incident_number",
		Type:        tools.String,
		Description: description,
		Required:    true,
		Pattern:     `^INC\d+$`,
		Hint:        "must be 'INC' followed by digits, e.g. INC0010001",
	}
}

func required(name, description string) tools.Field {
	return tools.Field{Name: name, Type: tools.String, Description: description, Required: true, MinLength: 1}
}

func timeframeField(def any) tools.Field {
	return tools.Field{
		Name:        "timeframe",
		Type:        tools.String,
		Description: "Time period, e.g. 'last 7 days', 'this month', 'last quarter', 'last 90 days', '2024-01-01 to 2024-01-31'.",
		Default:     def,
		Check:       checkTimeframe,
	}
}

// Specs returns the catalog in presentation order.
func (t *Toolset) Specs() []tools.Spec {
	return []tools.Spec{
		{
			Name:        "get_incident_details",
			Description: "Get comprehensive details for a specific incident ticket. Supports multiple output formats and field selection.",
			Fields: []tools.Field{
				incidentNumber("The full incident number, e.g. 'INC0010001'."),
				{
					Name:        "include_fields",
					Type:        tools.StringList,
					Description: "Fields to include. Available: " + strings.Join(sortedLabels(), ", ") + ".",
					Pattern:     `^[a-z_]+$`,
				},
				{Name: "verbose", Type: tools.Boolean, Description: "Include raw field values next to display values.", Default: false},
				{
					Name:        "format",
					Type:        tools.String,
					Description: "Output format: 'human' (readable text), 'json' (raw data), 'minimal' (one line).",
					Enum:        []string{"human", "json", "minimal"},
					FoldCase:    true,
					Default:     "human",
				},
			},
			Handler: t.getIncident,
		},
		{
			Name:        "search_incidents",
			Description: "Search for incidents by a keyword in their short description. Returns up to five matches.",
			Fields:      []tools.Field{required("search_term", "Keyword or phrase to search for in incident short descriptions.")},
			Handler:     t.searchIncidents,
		},
		{
			Name:        "create_incident",
			Description: "Create a new incident ticket. Provide a short description of the problem.",
			Fields: []tools.Field{
				required("short_description", "A brief summary of the issue for the new incident."),
				{Name: "description", Type: tools.String, Description: "Optional longer description of the issue."},
			},
			Handler: t.createIncident,
		},
		{
			Name:        "update_incident",
			Description: "Add a work note or comment to an existing incident.",
			Fields: []tools.Field{
				incidentNumber("The incident number to update, e.g. 'INC0010001'."),
				required("work_note", "The comment or work note to add to the incident."),
			},
			Handler: t.updateIncident,
		},
		{
			Name:        "list_open_incidents_for_caller",
			Description: "List all OPEN incidents reported by a specific user (caller).",
			Fields:      []tools.Field{required("user_name", "The full name of the user, e.g. 'Beth Anglin'.")},
			Handler:     t.listOpenForCaller,
		},
		{
			Name:        "list_incidents_assigned_to_user",
			Description: "Find all incidents (open or closed) assigned to a specific user.",
			Fields:      []tools.Field{required("user_name", "The full name of the user, e.g. 'David Loo'.")},
			Handler:     t.listAssignedToUser,
		},
		{
			Name: "search_knowledge_base",
			Description: "Search the knowledge base for articles. Use it for technical questions, how-tos, or internal processes. " +
				"Refine by field or category, e.g. search_term='troubleshoot printer', search_field='article_body'.",
			Fields: []tools.Field{
				required("search_term", "The keyword or phrase to search for."),
				{
					Name:        "search_field",
					Type:        tools.String,
					Description: "Field to search within, e.g. 'short_description' or 'article_body'.",
					Default:     "short_description",
					Pattern:     `^[a-z_]+$`,
				},
				{
					Name:        "search_limit",
					Type:        tools.Integer,
					Description: "Maximum number of articles to return.",
					Default:     3,
					Min:         tools.Bound(1),
					Max:         tools.Bound(10),
				},
				{Name: "category", Type: tools.String, Description: "Optional category to filter by, e.g. 'IT' or 'HR'."},
			},
			Handler: t.searchKnowledgeBase,
		},
		{
			Name:        "delete_incident",
			Description: "Permanently delete an incident record. WARNING: this cannot be undone.",
			Fields:      []tools.Field{incidentNumber("The incident number to delete, e.g. 'INC0010001'.")},
			Handler:     t.deleteIncident,
		},
		{
			Name:        "resolve_incident",
			Description: "Resolve an incident ticket. Requires a resolution note; the close code defaults to 'Solution provided'.",
			Fields: []tools.Field{
				incidentNumber("The incident number to resolve, e.g. 'INC0010001'."),
				required("resolution_note", "A brief description of the solution."),
				{
					Name:        "close_code",
					Type:        tools.String,
					Description: "The close code. Valid values: " + strings.Join(CloseCodes, ", ") + ".",
					Enum:        CloseCodes,
					FoldCase:    true,
					Default:     "Solution provided",
				},
			},
			Handler: t.resolveIncident,
		},
		{
			Name:        "assign_incident",
			Description: "Assign an incident to a specific user or group. Provide either a user name or a group name, not both.",
			Fields: []tools.Field{
				incidentNumber("The incident number to assign, e.g. 'INC0010001'."),
				{Name: "assign_to_user", Type: tools.String, Description: "The full name of the user to assign the incident to."},
				{Name: "assign_to_group", Type: tools.String, Description: "The name of the group to assign the incident to."},
			},
			Check:   checkAssignee,
			Handler: t.assignIncident,
		},
		{
			Name: "get_incident_metrics",
			Description: "Get resolution time metrics for incidents assigned to a group: average, median, fastest, " +
				"slowest, or all of them, over a timeframe.",
			Fields: []tools.Field{
				required("group_name", "The assignment group, e.g. 'Hardware', 'Software', 'Network'."),
				timeframeField(DefaultTimeframe),
				{
					Name:        "metric_type",
					Type:        tools.String,
					Description: "Metric to calculate: 'average', 'median', 'min', 'max', or 'all'.",
					Enum:        metricTypes,
					FoldCase:    true,
					Default:     "average",
				},
				{
					Name:        "resolution_state",
					Type:        tools.String,
					Description: "Which state counts as resolved: '6' (Resolved) or '7' (Closed).",
					Enum:        []string{"6", "7"},
					Default:     "6",
				},
				{Name: "include_breakdown", Type: tools.Boolean, Description: "Include a breakdown by priority.", Default: false},
			},
			Handler: t.incidentMetrics,
		},
		{
			Name:        "count_incidents_for_group",
			Description: "Count the incidents of an assignment group, optionally filtered by state, timeframe, and priority.",
			Fields: []tools.Field{
				required("group_name", "The assignment group, e.g. 'Hardware', 'Software', 'Network'."),
				stateField(),
				timeframeField(nil),
				priorityField(),
			},
			Handler: t.countForGroup,
		},
		{
			Name:        "list_incidents_for_group",
			Description: "List incidents assigned to a group with filtering, sorting, and field selection.",
			Fields: []tools.Field{
				required("group_name", "The assignment group, e.g. 'Hardware', 'Software', 'Network'."),
				{
					Name:        "limit",
					Type:        tools.Integer,
					Description: "Maximum number of incidents to return.",
					Default:     5,
					Min:         tools.Bound(1),
					Max:         tools.Bound(50),
				},
				stateField(),
				timeframeField(nil),
				priorityField(),
				{
					Name:        "sort_by",
					Type:        tools.String,
					Description: "Sort order: 'newest', 'oldest', 'priority_high', 'priority_low'.",
					Enum:        []string{"newest", "oldest", "priority_high", "priority_low"},
					FoldCase:    true,
					Default:     "newest",
				},
				{
					Name:        "show_fields",
					Type:        tools.StringList,
					Description: "Fields to show, e.g. number, short_description, state, priority, opened_at, resolved_at, assigned_to, category.",
					Pattern:     `^[a-z_]+$`,
					Default:     groupListShown,
				},
			},
			Handler: t.listForGroup,
		},
		{
			Name:        "get_multiple_incidents",
			Description: "Fetch details for several incidents at once. Use this instead of repeated single lookups.",
			Fields: []tools.Field{
				{
					Name:        "incident_numbers",
					Type:        tools.StringList,
					Description: "Incident numbers to fetch, e.g. ['INC0010001', 'INC0010002'].",
					Required:    true,
					Pattern:     `^INC\d+$`,
					Hint:        "each entry must be 'INC' followed by digits",
					MinItems:    1,
					MaxItems:    20,
				},
			},
			Handler: t.getMultiple,
		},
	}
}

func stateField() tools.Field {
	return tools.Field{
		Name:        "state",
		Type:        tools.String,
		Description: "Incident state: '1' (New), '2' (In Progress), '3' (On Hold), '6' (Resolved), '7' (Closed). Omit for all.",
		Enum:        stateCodes,
	}
}

func priorityField() tools.Field {
	return tools.Field{
		Name:        "priority",
		Type:        tools.String,
		Description: "Priority: '1' (Critical), '2' (High), '3' (Moderate), '4' (Low), '5' (Planning). Omit for all.",
		Enum:        priorityCodes,
	}
}

func checkAssignee(args tools.Args) error {
	user, group := args.String("assign_to_user"), args.String("assign_to_group")
	switch {
	case user == "" && group == "":
		return errors.New("specify either assign_to_user or assign_to_group")
	case user != "" && group != "":
		return errors.New("provide either assign_to_user or assign_to_group, not both")
	}
	return nil
}

// escape makes a user value safe inside an encoded query.
func escape(value string) string {
	return strings.ReplaceAll(value, "^", "^^")
}

func and(clauses ...string) string {
	var parts []string
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "^")
}

// resolve looks up a sys_id. A missing row is reported as found=false with
// a nil error.
func (t *Toolset) resolve(ctx context.Context, table, field, value string) (string, bool, error) {
	id, err := t.client.SysID(ctx, table, field, escape(value))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (t *Toolset) getIncident(ctx context.Context, args tools.Args) (string, error) {
	number := args.String("incident_number")
	fields := args.Strings("include_fields")
	if len(fields) == 0 {
		fields = detailFields
	}

	rows, err := t.client.List(ctx, tableIncident, Query{
		Filter:  "number=" + number,
		Fields:  fields,
		Limit:   1,
		Display: DisplayBoth,
	})
	if StatusOf(err) == http.StatusNotFound {
		return fmt.Sprintf("Incident %s not found.", number), nil
	}
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return fmt.Sprintf("No incident found with number: %s", number), nil
	}

	switch args.String("format") {
	case "json":
		data, err := json.MarshalIndent(rows[0], "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case "minimal":
		return formatMinimal(rows[0]), nil
	default:
		return formatHuman(rows[0], fields, args.Bool("verbose")), nil
	}
}

func (t *Toolset) searchIncidents(ctx context.Context, args tools.Args) (string, error) {
	term := args.String("search_term")
	rows, err := t.client.List(ctx, tableIncident, Query{
		Filter: "short_descriptionLIKE" + escape(term),
		Fields: []string{"number", "short_description"},
		Limit:  5,
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return fmt.Sprintf("No incidents found matching '%s'.", term), nil
	}

	lines := []string{"Found incidents:"}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Value("number"), r.Value("short_description")))
	}
	return strings.Join(lines, "\n"), nil
}

func (t *Toolset) createIncident(ctx context.Context, args tools.Args) (string, error) {
	caller := t.client.Config().Caller
	callerID, found, err := t.resolve(ctx, tableUser, "name", caller)
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("Could not find the default caller '%s' to create the incident.", caller), nil
	}

	fields := map[string]string{
		"short_description": args.String("short_description"),
		"caller_id":         callerID,
		"urgency":           "3",
		"impact":            "3",
	}
	if d := args.String("description"); d != "" {
		fields["description"] = d
	}

	created, err := t.client.Create(ctx, tableIncident, fields)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully created new incident: %s.", or(created.Value("number"), "UNKNOWN")), nil
}

func (t *Toolset) updateIncident(ctx context.Context, args tools.Args) (string, error) {
	number := args.String("incident_number")
	id, found, err := t.resolve(ctx, tableIncident, "number", number)
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("Could not find incident %s to update.", number), nil
	}

	if _, err := t.client.Update(ctx, tableIncident, id, map[string]string{"work_notes": args.String("work_note")}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully added note to incident %s.", number), nil
}

func (t *Toolset) listOpenForCaller(ctx context.Context, args tools.Args) (string, error) {
	name := args.String("user_name")
	id, found, err := t.resolve(ctx, tableUser, "name", name)
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("Could not find a user named '%s'.", name), nil
	}

	rows, err := t.client.List(ctx, tableIncident, Query{
		Filter: and("caller_id="+id, "active=true"),
		Fields: []string{"number", "short_description", "state"},
		Limit:  10,
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return fmt.Sprintf("No open incidents found for %s.", name), nil
	}
	return listWithState(fmt.Sprintf("Open incidents for %s:", name), rows), nil
}

func (t *Toolset) listAssignedToUser(ctx context.Context, args tools.Args) (string, error) {
	name := args.String("user_name")
	id, found, err := t.resolve(ctx, tableUser, "name", name)
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("Could not find a user named '%s' to check assignments.", name), nil
	}

	rows, err := t.client.List(ctx, tableIncident, Query{
		Filter: "assigned_to=" + id,
		Fields: []string{"number", "short_description", "state"},
		Limit:  10,
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return fmt.Sprintf("No incidents are currently assigned to %s.", name), nil
	}
	return listWithState(fmt.Sprintf("Incidents assigned to %s:", name), rows), nil
}

func listWithState(header string, rows []Record) string {
	lines := []string{header}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("- %s: %s (State: %s)", r.Value("number"), r.Value("short_description"), orNA(display(r, "state"))))
	}
	return strings.Join(lines, "\n")
}

func (t *Toolset) searchKnowledgeBase(ctx context.Context, args tools.Args) (string, error) {
	term := args.String("search_term")
	filter := args.String("search_field") + "LIKE" + escape(term)
	if category := args.String("category"); category != "" {
		filter = and(filter, "categoryLIKE"+escape(category))
	}

	rows, err := t.client.List(ctx, tableKB, Query{
		Filter: filter,
		Fields: []string{"number", "short_description", "article_body", "sys_id", "sys_view_count"},
		Limit:  args.Int("search_limit"),
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return fmt.Sprintf("No knowledge base articles found matching '%s'.", term), nil
	}

	entries := []string{"Found knowledge base articles:"}
	for _, r := range rows {
		entries = append(entries, fmt.Sprintf("- %s: %s\n  Link: %s/kb_view.do?sys_kb_id=%s\n  Summary: %s",
			r.Value("number"),
			or(r.Value("short_description"), "No Title"),
			t.client.InstanceURL(),
			r.Value("sys_id"),
			summarize(r.Value("article_body")),
		))
	}
	return strings.Join(entries, "\n\n"), nil
}

func (t *Toolset) deleteIncident(ctx context.Context, args tools.Args) (string, error) {
	number := args.String("incident_number")
	notFound := fmt.Sprintf("Could not find incident %s to delete.", number)

	id, found, err := t.resolve(ctx, tableIncident, "number", number)
	if err != nil {
		return "", err
	}
	if !found {
		return notFound, nil
	}

	if err := t.client.Delete(ctx, tableIncident, id); err != nil {
		switch StatusOf(err) {
		case 0:
			return "", err
		case http.StatusNotFound:
			return notFound, nil
		default:
			return "", fmt.Errorf("%w. Please check user permissions", err)
		}
	}
	return fmt.Sprintf("Successfully deleted incident %s.", number), nil
}

func (t *Toolset) resolveIncident(ctx context.Context, args tools.Args) (string, error) {
	number := args.String("incident_number")
	note := args.String("resolution_note")
	code := args.String("close_code")

	id, found, err := t.resolve(ctx, tableIncident, "number", number)
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("Could not find incident %s to resolve.", number), nil
	}

	_, err = t.client.Update(ctx, tableIncident, id, map[string]string{
		"state":            "6",
		"resolution_notes": note,
		"close_notes":      note,
		"close_code":       code,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusBadRequest:
				return "Validation error: " + errorDetail(apiErr.Body), nil
			case http.StatusForbidden:
				return fmt.Sprintf("Permission denied: %v", apiErr), nil
			}
		}
		return "", err
	}
	return fmt.Sprintf("Successfully resolved incident %s with close code '%s' and note: '%s'.", number, code, note), nil
}

// errorDetail extracts error.detail from a ServiceNow error body.
func errorDetail(body string) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return "Unknown error"
	}
	return or(payload.Error.Detail, or(payload.Error.Message, "Unknown error"))
}

func (t *Toolset) assignIncident(ctx context.Context, args tools.Args) (string, error) {
	number := args.String("incident_number")
	id, found, err := t.resolve(ctx, tableIncident, "number", number)
	if err != nil {
		return "", err
	}
	if !found {
		return fmt.Sprintf("Could not find incident %s to assign.", number), nil
	}

	var field, target string
	if user := args.String("assign_to_user"); user != "" {
		userID, found, err := t.resolve(ctx, tableUser, "name", user)
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("Could not find a user named '%s'.", user), nil
		}
		field, target = "assigned_to", userID
	} else {
		group := args.String("assign_to_group")
		groupID, found, err := t.resolve(ctx, tableGroup, "name", group)
		if err != nil {
			return "", err
		}
		if !found {
			return fmt.Sprintf("Could not find a group named '%s'.", group), nil
		}
		field, target = "assignment_group", groupID
	}

	if _, err := t.client.Update(ctx, tableIncident, id, map[string]string{field: target}); err != nil {
		return "", fmt.Errorf("%w. Please check user permissions", err)
	}
	return fmt.Sprintf("Successfully assigned incident %s.", number), nil
}

func (t *Toolset) groupFilter(ctx context.Context, group string) (string, string, error) {
	id, found, err := t.resolve(ctx, tableGroup, "name", group)
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", fmt.Sprintf("Could not find an assignment group named '%s'.", group), nil
	}
	return "assignment_group=" + id, "", nil
}

func permissionDenied(err error, action, group string) (string, error) {
	if StatusOf(err) == http.StatusForbidden {
		return fmt.Sprintf("Permission denied while %s for group '%s'. Please check user permissions.", action, group), nil
	}
	return "", err
}

func (t *Toolset) incidentMetrics(ctx context.Context, args tools.Args) (string, error) {
	group := args.String("group_name")
	timeframe := args.String("timeframe")
	state := args.String("resolution_state")

	groupClause, missing, err := t.groupFilter(ctx, group)
	if err != nil || missing != "" {
		return missing, err
	}
	period, err := ParseTimeframe(timeframe)
	if err != nil {
		return "", err
	}

	rows, err := t.client.List(ctx, tableIncident, Query{
		Filter: and(groupClause, "state="+state, period),
		Fields: []string{"number", "opened_at", "resolved_at", "closed_at", "sys_created_on", "priority", "category", "severity"},
		Limit:  1000,
	})
	if err != nil {
		return permissionDenied(err, "fetching metrics", group)
	}
	if len(rows) == 0 {
		return fmt.Sprintf("No %s incidents found for '%s' group in %s.", strings.ToLower(stateLabel(state)), group, timeframe), nil
	}

	return metricsReport{
		group:           group,
		timeframe:       timeframe,
		metric:          args.String("metric_type"),
		resolutionState: state,
		breakdown:       args.Bool("include_breakdown"),
		records:         rows,
	}.render(), nil
}

type groupFilters struct {
	state     string
	timeframe string
	priority  string
}

func filtersOf(args tools.Args) groupFilters {
	return groupFilters{
		state:     args.String("state"),
		timeframe: args.String("timeframe"),
		priority:  args.String("priority"),
	}
}

func (f groupFilters) clauses() ([]string, error) {
	var clauses []string
	if f.state != "" {
		clauses = append(clauses, "state="+f.state)
	}
	if f.priority != "" {
		clauses = append(clauses, "priority="+f.priority)
	}
	if f.timeframe != "" {
		period, err := ParseTimeframe(f.timeframe)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, period)
	}
	return clauses, nil
}

func (f groupFilters) describe() []string {
	var parts []string
	if f.state != "" {
		parts = append(parts, fmt.Sprintf("state '%s'", f.state))
	}
	if f.timeframe != "" {
		parts = append(parts, fmt.Sprintf("timeframe '%s'", f.timeframe))
	}
	if f.priority != "" {
		parts = append(parts, fmt.Sprintf("priority '%s'", f.priority))
	}
	return parts
}

func (t *Toolset) countForGroup(ctx context.Context, args tools.Args) (string, error) {
	group := args.String("group_name")
	filters := filtersOf(args)

	groupClause, missing, err := t.groupFilter(ctx, group)
	if err != nil || missing != "" {
		return missing, err
	}
	clauses, err := filters.clauses()
	if err != nil {
		return "", err
	}

	count, err := t.client.Count(ctx, tableIncident, and(append([]string{groupClause}, clauses...)...))
	if err != nil {
		return permissionDenied(err, "counting incidents", group)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "There are %d incidents", count)
	if filters.state != "" {
		fmt.Fprintf(&b, " in state '%s'", filters.state)
	}
	if filters.timeframe != "" {
		fmt.Fprintf(&b, " from %s", filters.timeframe)
	}
	if filters.priority != "" {
		fmt.Fprintf(&b, " with priority '%s'", filters.priority)
	}
	fmt.Fprintf(&b, " for the '%s' assignment group.", group)
	return b.String(), nil
}

func (t *Toolset) listForGroup(ctx context.Context, args tools.Args) (string, error) {
	group := args.String("group_name")
	filters := filtersOf(args)
	shown := args.Strings("show_fields")
	if len(shown) == 0 {
		shown = groupListShown
	}

	groupClause, missing, err := t.groupFilter(ctx, group)
	if err != nil || missing != "" {
		return missing, err
	}
	clauses, err := filters.clauses()
	if err != nil {
		return "", err
	}
	clauses = append([]string{groupClause}, clauses...)
	clauses = append(clauses, sortOrders[args.String("sort_by")])

	fields := shown
	if !contains(fields, "number") {
		fields = append([]string{"number"}, fields...)
	}

	rows, err := t.client.List(ctx, tableIncident, Query{
		Filter: and(clauses...),
		Fields: fields,
		Limit:  args.Int("limit"),
	})
	if err != nil {
		return permissionDenied(err, "listing incidents", group)
	}

	described := filters.describe()
	if len(rows) == 0 {
		msg := fmt.Sprintf("No incidents found for '%s' group", group)
		if len(described) > 0 {
			msg += " with filters: " + strings.Join(described, ", ")
		}
		return msg + ".", nil
	}

	header := fmt.Sprintf("Found %d incidents for '%s' group", len(rows), group)
	if len(described) > 0 {
		header += " (filters: " + strings.Join(described, ", ") + ")"
	}

	blocks := []string{header + ":"}
	for i, r := range rows {
		lines := []string{fmt.Sprintf("%d. %s:", i+1, orNA(r.Value("number")))}
		for _, field := range shown {
			if field == "number" {
				continue
			}
			if v := display(r, field); v != "" {
				lines = append(lines, fmt.Sprintf("   • %s: %s", label(field), v))
			}
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n"), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (t *Toolset) getMultiple(ctx context.Context, args tools.Args) (string, error) {
	numbers := args.Strings("incident_numbers")

	fetch := func(ctx context.Context, number string) (string, error) {
		rows, err := t.client.List(ctx, tableIncident, Query{
			Filter:  "number=" + number,
			Fields:  summaryFields,
			Limit:   1,
			Display: DisplayBoth,
		})
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return fmt.Sprintf("Incident %s not found", number), nil
		}
		return formatSummary(number, rows[0]), nil
	}

	batch, _ := workflows.ProcessParallel(ctx, t.fetch, numbers, fetch)

	sections := make([]string, len(numbers))
	for i, number := range numbers {
		if err, failed := batch.Failed(i); failed {
			sections[i] = fmt.Sprintf("Error fetching incident %s: %v", number, err)
			continue
		}
		sections[i] = batch.Results[i]
	}
	return strings.Join(sections, "\n\n"), nil
}

func formatSummary(number string, r Record) string {
	return fmt.Sprintf("Incident %s:\n- Short Description: %s\n- State: %s\n- Assignment Group: %s\n- Caller: %s\n- Description: %s",
		number,
		or(r.Display("short_description"), "Not provided"),
		or(display(r, "state"), "Unknown"),
		or(r.Display("assignment_group"), "Not assigned"),
		or(r.Display("caller_id"), "Unknown"),
		or(r.Display("description"), "No description provided"),
	)
}
