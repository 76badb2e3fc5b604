package tools_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/incidentdesk/tools"
)

func validationRegistry(t *testing.T) *tools.Registry {
	t.Helper()

	registry := tools.NewRegistry()
	registry.MustRegister(
		tools.Spec{
			Name: "get_incident_details",
			Fields: []tools.Field{
				{Name: "incident_number", Type: tools.String, Required: true, Pattern: `^INC\d+$`, Hint: "must start with INC followed by digits"},
				{Name: "format", Type: tools.String, Default: "human", Enum: []string{"human", "json", "minimal"}},
				{Name: "include_fields", Type: tools.StringList},
				{Name: "verbose", Type: tools.Boolean, Default: false},
			},
			Handler: echoHandler,
		},
		tools.Spec{
			Name: "get_incident_metrics",
			Fields: []tools.Field{
				{Name: "metric_type", Type: tools.String, Default: "average", Enum: []string{"average", "median", "all"}, FoldCase: true},
				{Name: "resolution_state", Type: tools.String, Default: "6", Enum: []string{"6", "7"}},
				{Name: "timeframe", Type: tools.String, Default: "last 30 days", Check: func(v any) error {
					if !strings.Contains(v.(string), "day") {
						return fmt.Errorf("unsupported timeframe %q", v)
					}
					return nil
				}},
			},
			Handler: echoHandler,
		},
		tools.Spec{
			Name: "list_incidents_for_group",
			Fields: []tools.Field{
				{Name: "group_name", Type: tools.String, Required: true, MinLength: 1},
				{Name: "limit", Type: tools.Integer, Default: 5, Min: tools.Bound(1), Max: tools.Bound(50)},
			},
			Handler: echoHandler,
		},
		tools.Spec{
			Name: "get_multiple_incidents",
			Fields: []tools.Field{
				{Name: "incident_numbers", Type: tools.StringList, Required: true, Pattern: `^INC\d+$`, MinItems: 1, MaxItems: 3},
			},
			Handler: echoHandler,
		},
		tools.Spec{
			Name: "assign_incident",
			Fields: []tools.Field{
				{Name: "user", Type: tools.String},
				{Name: "group", Type: tools.String},
			},
			Check: func(args tools.Args) error {
				if args.Has("user") == args.Has("group") {
					return errors.New("provide exactly one of user or group")
				}
				return nil
			},
			Handler: echoHandler,
		},
	)
	return registry
}

func fieldNames(err error) []string {
	var verr *tools.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	names := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		names[i] = f.Field
	}
	return names
}

func TestValidate_AppliesDefaults(t *testing.T) {
	registry := validationRegistry(t)

	args, err := registry.Validate("get_incident_details", json.RawMessage(`{"incident_number":"INC0010001"}`))
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	if got := args.String("incident_number"); got != "INC0010001" {
		t.Errorf("incident_number = %q, want %q", got, "INC0010001")
	}
	if got := args.String("format"); got != "human" {
		t.Errorf("format = %q, want %q", got, "human")
	}
	if args.Bool("verbose") {
		t.Error("verbose = true, want false")
	}
	if args.Has("include_fields") {
		t.Error("include_fields should stay absent without a default")
	}
}

func TestValidate_Rejections(t *testing.T) {
	registry := validationRegistry(t)

	tests := []struct {
		name       string
		tool       string
		args       string
		wantFields []string
	}{
		{"bad incident prefix", "get_incident_details", `{"incident_number":"0010001"}`, []string{"incident_number"}},
		{"lowercase prefix", "get_incident_details", `{"incident_number":"inc0010001"}`, []string{"incident_number"}},
		{"missing required", "get_incident_details", `{}`, []string{"incident_number"}},
		{"enum mismatch", "get_incident_details", `{"incident_number":"INC1","format":"xml"}`, []string{"format"}},
		{"wrong type", "get_incident_details", `{"incident_number":"INC1","verbose":"maybe"}`, []string{"verbose"}},
		{"above maximum", "list_incidents_for_group", `{"group_name":"Network","limit":60}`, []string{"limit"}},
		{"below minimum", "list_incidents_for_group", `{"group_name":"Network","limit":0}`, []string{"limit"}},
		{"float above maximum", "list_incidents_for_group", `{"group_name":"Network","limit":60.0}`, []string{"limit"}},
		{"fractional integer", "list_incidents_for_group", `{"group_name":"Network","limit":5.5}`, []string{"limit"}},
		{"empty string", "list_incidents_for_group", `{"group_name":""}`, []string{"group_name"}},
		{"item pattern", "get_multiple_incidents", `{"incident_numbers":["INC1","bogus"]}`, []string{"incident_numbers"}},
		{"too many items", "get_multiple_incidents", `{"incident_numbers":["INC1","INC2","INC3","INC4"]}`, []string{"incident_numbers"}},
		{"predicate", "get_incident_metrics", `{"timeframe":"forever"}`, []string{"timeframe"}},
		{"cross field", "assign_incident", `{"user":"Beth","group":"Network"}`, []string{""}},
		{"cross field none", "assign_incident", `{}`, []string{""}},
		{"multiple fields", "get_incident_details", `{"incident_number":"X","format":"xml"}`, []string{"incident_number", "format"}},
		{"not json", "get_incident_details", `{incident_number:}`, []string{""}},
		{"not an object", "get_incident_details", `["INC1"]`, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Validate(tt.tool, json.RawMessage(tt.args))
			if !errors.Is(err, tools.ErrInvalidArguments) {
				t.Fatalf("Validate() error = %v, want ErrInvalidArguments", err)
			}

			got := fieldNames(err)
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("fields = %q, want %q (%v)", got, tt.wantFields, err)
			}
			if !strings.Contains(err.Error(), tt.tool) {
				t.Errorf("error %q should name the tool", err.Error())
			}
		})
	}
}

func TestValidate_PatternHint(t *testing.T) {
	_, err := validationRegistry(t).Validate("get_incident_details", json.RawMessage(`{"incident_number":"12345"}`))

	want := "invalid arguments for get_incident_details: incident_number: must start with INC followed by digits"
	if err == nil || err.Error() != want {
		t.Errorf("error = %v, want %q", err, want)
	}
}

func TestValidate_Normalization(t *testing.T) {
	registry := validationRegistry(t)

	tests := []struct {
		name  string
		tool  string
		args  string
		field string
		want  any
	}{
		{"fold case enum", "get_incident_metrics", `{"metric_type":"MEDIAN"}`, "metric_type", "median"},
		{"numeric string enum", "get_incident_metrics", `{"resolution_state":7}`, "resolution_state", "7"},
		{"string integer", "list_incidents_for_group", `{"group_name":"Network","limit":"10"}`, "limit", 10},
		{"null counts as absent", "list_incidents_for_group", `{"group_name":"Network","limit":null}`, "limit", 5},
		{"integral float", "list_incidents_for_group", `{"group_name":"Network","limit":5.0}`, "limit", 5},
		{"integral exponent", "list_incidents_for_group", `{"group_name":"Network","limit":1e1}`, "limit", 10},
		{"string bool", "get_incident_details", `{"incident_number":"INC1","verbose":"true"}`, "verbose", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := registry.Validate(tt.tool, json.RawMessage(tt.args))
			if err != nil {
				t.Fatalf("Validate() failed: %v", err)
			}

			var got any
			switch tt.want.(type) {
			case int:
				got = args.Int(tt.field)
			case bool:
				got = args.Bool(tt.field)
			default:
				got = args.String(tt.field)
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestValidate_NullStringAndUnknownFields(t *testing.T) {
	args, err := validationRegistry(t).Validate("assign_incident", json.RawMessage(`{"user":"null","group":"Network","extra":1}`))
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if args.Has("user") {
		t.Error(`"null" user should be treated as absent`)
	}
	if args.Has("extra") {
		t.Error("undeclared fields should be dropped")
	}
	if args.String("group") != "Network" {
		t.Errorf("group = %q, want %q", args.String("group"), "Network")
	}
}

func TestValidate_EmptyArguments(t *testing.T) {
	args, err := validationRegistry(t).Validate("get_incident_metrics", nil)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	if args.String("timeframe") != "last 30 days" {
		t.Errorf("timeframe = %q, want default", args.String("timeframe"))
	}
}

func TestValidate_UnknownTool(t *testing.T) {
	_, err := validationRegistry(t).Validate("drop_tables", json.RawMessage(`{}`))
	if !errors.Is(err, tools.ErrNotFound) {
		t.Errorf("Validate() error = %v, want %v", err, tools.ErrNotFound)
	}
}

func TestArgs_Strings(t *testing.T) {
	args, err := validationRegistry(t).Validate("get_multiple_incidents", json.RawMessage(`{"incident_numbers":["INC1","INC2"]}`))
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	got := args.Strings("incident_numbers")
	if len(got) != 2 || got[0] != "INC1" || got[1] != "INC2" {
		t.Errorf("Strings() = %v, want [INC1 INC2]", got)
	}

	single, err := validationRegistry(t).Validate("get_multiple_incidents", json.RawMessage(`{"incident_numbers":"INC9"}`))
	if err != nil {
		t.Fatalf("Validate() failed for single string: %v", err)
	}
	if got := single.Strings("incident_numbers"); len(got) != 1 || got[0] != "INC9" {
		t.Errorf("Strings() = %v, want [INC9]", got)
	}
}
