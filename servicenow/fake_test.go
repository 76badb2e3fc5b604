package servicenow_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/incidentdesk/servicenow"
)

const (
	testUser     = "admin"
	testPassword = "secret"
)

type request struct {
	Method string
	Path   string
	Query  string
	Fields string
	Limit  string
	Body   map[string]string
}

// fakeInstance serves the subset of the table and aggregate APIs the tools
// use. Lookups by name or number resolve against the maps; any other table
// query returns the preset rows for that table.
type fakeInstance struct {
	mu       sync.Mutex
	requests []request

	users     map[string]string
	groups    map[string]string
	incidents map[string]servicenow.Record
	rows      map[string][]servicenow.Record
	count     string

	// Requests matching failMethod and failPath (a prefix) get failStatus.
	failMethod string
	failPath   string
	failStatus int
	failBody   string
}

func newFakeInstance(t *testing.T) (*fakeInstance, *servicenow.Client) {
	t.Helper()

	f := &fakeInstance{
		users:     map[string]string{"Abel Tuter": "usr_abel", "Beth Anglin": "usr_beth"},
		groups:    map[string]string{"Network": "grp_network"},
		incidents: map[string]servicenow.Record{},
		rows:      map[string][]servicenow.Record{},
		count:     "0",
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client := servicenow.NewClient(servicenow.Config{
		Instance: srv.URL + "/",
		Username: testUser,
		Password: testPassword,
	})
	return f, client
}

func (f *fakeInstance) failOn(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMethod, f.failPath, f.failStatus, f.failBody = method, path, status, body
}

func (f *fakeInstance) setRows(table string, rows ...servicenow.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[table] = rows
}

func (f *fakeInstance) setCount(n string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count = n
}

func (f *fakeInstance) removeUser(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, name)
}

func (f *fakeInstance) addIncident(number, sysID string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := servicenow.Record{"number": number, "sys_id": sysID}
	for k, v := range fields {
		r[k] = v
	}
	f.incidents[number] = r
}

func (f *fakeInstance) recorded() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

func (f *fakeInstance) last(method string) (request, bool) {
	reqs := f.recorded()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method {
			return reqs[i], true
		}
	}
	return request{}, false
}

func (f *fakeInstance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != testUser || pass != testPassword {
		http.Error(w, `{"error":{"message":"User Not Authenticated"}}`, http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	rec := request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  q.Get("sysparm_query"),
		Fields: q.Get("sysparm_fields"),
		Limit:  q.Get("sysparm_limit"),
	}
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, rec)

	if f.failStatus != 0 && r.Method == f.failMethod && strings.HasPrefix(r.URL.Path, f.failPath) {
		http.Error(w, f.failBody, f.failStatus)
		return
	}

	switch {
	case r.URL.Path == "/api/now/stats/incident":
		writeResult(w, map[string]any{"stats": map[string]any{"count": f.count}})

	case r.URL.Path == "/api/now/table/sys_user":
		writeResult(w, lookup(f.users, rec.Query, "name="))

	case r.URL.Path == "/api/now/table/sys_user_group":
		writeResult(w, lookup(f.groups, rec.Query, "name="))

	case r.URL.Path == "/api/now/table/incident" && r.Method == http.MethodPost:
		writeResult(w, map[string]any{"number": "INC0010099", "sys_id": "sys_new"})

	case r.URL.Path == "/api/now/table/incident" && strings.HasPrefix(rec.Query, "number="):
		number := strings.TrimPrefix(rec.Query, "number=")
		if inc, ok := f.incidents[number]; ok {
			writeResult(w, []servicenow.Record{inc})
			return
		}
		writeResult(w, []servicenow.Record{})

	case strings.HasPrefix(r.URL.Path, "/api/now/table/incident/"):
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeResult(w, map[string]any{"sys_id": strings.TrimPrefix(r.URL.Path, "/api/now/table/incident/")})
		}

	case strings.HasPrefix(r.URL.Path, "/api/now/table/"):
		table := strings.TrimPrefix(r.URL.Path, "/api/now/table/")
		rows := f.rows[table]
		if rows == nil {
			rows = []servicenow.Record{}
		}
		writeResult(w, rows)

	default:
		http.NotFound(w, r)
	}
}

func lookup(names map[string]string, query, prefix string) []map[string]string {
	if id, ok := names[strings.TrimPrefix(query, prefix)]; ok {
		return []map[string]string{{"sys_id": id}}
	}
	return []map[string]string{}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
}
