package servicenow_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/tailored-agentic-units/incidentdesk/core/config"
	"github.com/tailored-agentic-units/incidentdesk/servicenow"
)

func TestNewClient_Defaults(t *testing.T) {
	client := servicenow.NewClient(servicenow.Config{Instance: "https://dev1.service-now.com/"})

	cfg := client.Config()
	if cfg.Timeout.Std() != 30*time.Second {
		t.Errorf("timeout = %s, want 30s", cfg.Timeout.Std())
	}
	if cfg.MaxFetchWorkers != 5 {
		t.Errorf("max fetch workers = %d, want 5", cfg.MaxFetchWorkers)
	}
	if cfg.Caller != "Abel Tuter" {
		t.Errorf("caller = %q, want Abel Tuter", cfg.Caller)
	}
	if got := client.InstanceURL(); got != "https://dev1.service-now.com" {
		t.Errorf("instance URL = %q", got)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := servicenow.DefaultConfig()
	cfg.Merge(&servicenow.Config{
		Instance: "https://x.service-now.com",
		Username: "u",
		Password: "p",
		Timeout:  config.Duration(5 * time.Second),
	})

	if !cfg.Configured() {
		t.Error("expected configured after merge")
	}
	if cfg.Timeout.Std() != 5*time.Second {
		t.Errorf("timeout = %s, want 5s", cfg.Timeout.Std())
	}
	if cfg.MaxFetchWorkers != 5 {
		t.Errorf("zero value overwrote max fetch workers: %d", cfg.MaxFetchWorkers)
	}
}

func TestClient_MissingCredentials(t *testing.T) {
	client := servicenow.NewClient(servicenow.Config{Instance: "https://dev1.service-now.com"})

	_, err := client.List(context.Background(), "incident", servicenow.Query{})
	if !errors.Is(err, servicenow.ErrMissingCredentials) {
		t.Fatalf("got %v, want ErrMissingCredentials", err)
	}
}

func TestClient_List(t *testing.T) {
	fake, client := newFakeInstance(t)
	fake.setRows("incident",
		servicenow.Record{"number": "INC001", "state": map[string]any{"value": "2", "display_value": "In Progress"}},
	)

	rows, err := client.List(context.Background(), "incident", servicenow.Query{
		Filter:  "active=true",
		Fields:  []string{"number", "state"},
		Limit:   3,
		Display: servicenow.DisplayBoth,
	})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Value("state") != "2" || rows[0].Display("state") != "In Progress" {
		t.Errorf("state value/display = %q/%q", rows[0].Value("state"), rows[0].Display("state"))
	}
	if rows[0].Display("number") != "INC001" {
		t.Errorf("plain field display = %q", rows[0].Display("number"))
	}

	req, _ := fake.last(http.MethodGet)
	if req.Query != "active=true" || req.Fields != "number,state" || req.Limit != "3" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestClient_SysID(t *testing.T) {
	_, client := newFakeInstance(t)

	id, err := client.SysID(context.Background(), "sys_user", "name", "Beth Anglin")
	if err != nil {
		t.Fatalf("SysID failed: %v", err)
	}
	if id != "usr_beth" {
		t.Errorf("got %q, want usr_beth", id)
	}

	_, err = client.SysID(context.Background(), "sys_user", "name", "Nobody")
	if !errors.Is(err, servicenow.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestClient_APIError(t *testing.T) {
	fake, client := newFakeInstance(t)
	fake.failOn(http.MethodGet, "/api/now/table/incident", http.StatusForbidden, "ACL denied")

	_, err := client.List(context.Background(), "incident", servicenow.Query{})

	var apiErr *servicenow.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", apiErr.StatusCode)
	}
	if err.Error() != "ServiceNow API error 403: ACL denied" {
		t.Errorf("error text = %q", err.Error())
	}
	if servicenow.StatusOf(err) != http.StatusForbidden {
		t.Errorf("StatusOf = %d", servicenow.StatusOf(err))
	}
}

func TestClient_TransportError(t *testing.T) {
	client := servicenow.NewClient(servicenow.Config{
		Instance: "http://127.0.0.1:1",
		Username: "u",
		Password: "p",
		Timeout:  config.Duration(time.Second),
	})
	_, err := client.List(context.Background(), "incident", servicenow.Query{})
	if err == nil {
		t.Fatal("expected connection error")
	}
	if servicenow.StatusOf(err) != 0 {
		t.Errorf("transport failure reported as API status %d", servicenow.StatusOf(err))
	}
}

func TestClient_Count(t *testing.T) {
	fake, client := newFakeInstance(t)
	fake.setCount("42")

	n, err := client.Count(context.Background(), "incident", "assignment_group=grp_network")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 42 {
		t.Errorf("got %d, want 42", n)
	}

	req, _ := fake.last(http.MethodGet)
	if req.Path != "/api/now/stats/incident" || req.Query != "assignment_group=grp_network" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestClient_WriteMethods(t *testing.T) {
	fake, client := newFakeInstance(t)
	ctx := context.Background()

	created, err := client.Create(ctx, "incident", map[string]string{"short_description": "VPN down"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Value("number") != "INC0010099" {
		t.Errorf("created number = %q", created.Value("number"))
	}
	post, _ := fake.last(http.MethodPost)
	if post.Body["short_description"] != "VPN down" {
		t.Errorf("POST body = %v", post.Body)
	}

	if _, err := client.Update(ctx, "incident", "sys_1", map[string]string{"work_notes": "checked"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	patch, _ := fake.last(http.MethodPatch)
	if patch.Path != "/api/now/table/incident/sys_1" || patch.Body["work_notes"] != "checked" {
		t.Errorf("unexpected PATCH: %+v", patch)
	}

	if err := client.Delete(ctx, "incident", "sys_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}
