package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/roach88/solvebridge/internal/decode"
)

// Script drives what FakeService reports for every job it accepts.
type Script struct {
	// States is returned one per status fetch; the last one repeats.
	// Empty means a single "completed".
	States []string

	SolveStatus string
	Details     map[string]string
	Activity    []string
	Outputs     []decode.Attachment
	// OutputReferences is reported as output_data_references on
	// completion, each entry a data reference object.
	OutputReferences []map[string]any
	// Failure is reported once the job reaches "failed" or "canceled".
	Failure json.RawMessage

	// FailFetchAt makes the n-th status fetch (1-based) answer 503.
	FailFetchAt int
}

type fakeJob struct {
	id      string
	body    []byte
	fetches int
	deleted bool
}

// FakeService is an in-process deployment jobs API with a token endpoint.
//
// Routes:
//
//	POST   /identity/token                 cloud key exchange
//	GET    /v1/preauth/validateAuth        on-prem basic-auth exchange
//	POST   /ml/v4/deployment_jobs          submit
//	GET    /ml/v4/deployment_jobs/{id}     status
//	DELETE /ml/v4/deployment_jobs/{id}     delete
type FakeService struct {
	Server *httptest.Server

	// RequireToken makes job routes reject requests that do not carry the
	// current access token.
	RequireToken bool

	mu       sync.Mutex
	token    string
	script   Script
	jobs     map[string]*fakeJob
	order    []string
	fetches  int
	deletes  int
	exchange int
}

// NewFakeService starts a FakeService that is closed with the test.
func NewFakeService(t testing.TB, script Script) *FakeService {
	t.Helper()
	f := StartFakeService(script)
	t.Cleanup(f.Close)
	return f
}

// StartFakeService starts a FakeService outside a test. The caller closes it.
func StartFakeService(script Script) *FakeService {
	f := &FakeService{
		token:  "token-1",
		script: script,
		jobs:   make(map[string]*fakeJob),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /identity/token", f.handleToken)
	mux.HandleFunc("GET /v1/preauth/validateAuth", f.handleToken)
	mux.HandleFunc("POST /ml/v4/deployment_jobs", f.guard(f.handleSubmit))
	mux.HandleFunc("GET /ml/v4/deployment_jobs/{id}", f.guard(f.handleStatus))
	mux.HandleFunc("DELETE /ml/v4/deployment_jobs/{id}", f.guard(f.handleDelete))
	f.Server = httptest.NewServer(mux)
	return f
}

// Close shuts the server down. It is safe to call more than once.
func (f *FakeService) Close() { f.Server.Close() }

// URL is the service's base URL.
func (f *FakeService) URL() string { return f.Server.URL }

// TokenURL is the cloud key exchange endpoint.
func (f *FakeService) TokenURL() string { return f.Server.URL + "/identity/token" }

// Fetches returns the number of status fetches served.
func (f *FakeService) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// Deletes returns the number of delete requests that removed a job.
func (f *FakeService) Deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}

// RotateToken changes the token both token routes hand out. Tokens issued
// before the rotation are rejected from then on.
func (f *FakeService) RotateToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *FakeService) accessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// Exchanges returns the number of token exchanges served.
func (f *FakeService) Exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchange
}

// Submissions returns every submitted body in arrival order.
func (f *FakeService) Submissions() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.order))
	for i, id := range f.order {
		out[i] = f.jobs[id].body
	}
	return out
}

// Live returns the ids of jobs not yet deleted.
func (f *FakeService) Live() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range f.order {
		if !f.jobs[id].deleted {
			out = append(out, id)
		}
	}
	return out
}

func (f *FakeService) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.RequireToken && r.Header.Get("Authorization") != "Bearer "+f.accessToken() {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"errors": []map[string]string{{"code": "authentication_token_expired", "message": "bad token"}},
			})
			return
		}
		next(w, r)
	}
}

func (f *FakeService) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.exchange++
	token := f.token
	f.mu.Unlock()
	if r.Method == http.MethodGet {
		if _, _, ok := r.BasicAuth(); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "no credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"accessToken": token})
		return
	}
	_ = r.ParseForm()
	if r.PostForm.Get("apikey") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"errorMessage": "apikey missing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": token, "expires_in": 3600})
}

func (f *FakeService) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	var req struct {
		Name       string `json:"name"`
		SpaceID    string `json:"space_id"`
		Deployment struct {
			ID string `json:"id"`
		} `json:"deployment"`
	}
	_ = json.Unmarshal(body, &req)

	f.mu.Lock()
	id := fmt.Sprintf("job-%d", len(f.order)+1)
	f.jobs[id] = &fakeJob{id: id, body: body}
	f.order = append(f.order, id)
	f.mu.Unlock()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"metadata": map[string]any{"id": id, "name": req.Name, "space_id": req.SpaceID},
		"entity": map[string]any{
			"deployment":            map[string]any{"id": req.Deployment.ID},
			"decision_optimization": map[string]any{"status": map[string]any{"state": "queued"}},
		},
	})
}

func (f *FakeService) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[r.PathValue("id")]
	if !ok || j.deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "job not found"})
		return
	}
	f.fetches++
	j.fetches++
	if f.script.FailFetchAt > 0 && f.fetches == f.script.FailFetchAt {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "try later"})
		return
	}

	states := f.script.States
	if len(states) == 0 {
		states = []string{"completed"}
	}
	state := states[min(j.fetches, len(states))-1]

	do := map[string]any{
		"status": map[string]any{"state": state},
		"solve_state": map[string]any{
			"solve_status":           f.script.SolveStatus,
			"latest_engine_activity": f.script.Activity,
			"details":                f.script.Details,
		},
	}
	switch strings.ToLower(state) {
	case "completed":
		do["output_data"] = f.script.Outputs
		if len(f.script.OutputReferences) > 0 {
			do["output_data_references"] = f.script.OutputReferences
		}
	case "failed", "canceled":
		if len(f.script.Failure) > 0 {
			do["status"].(map[string]any)["failure"] = f.script.Failure
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metadata": map[string]any{"id": j.id},
		"entity":   map[string]any{"decision_optimization": do},
	})
}

func (f *FakeService) handleDelete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[r.PathValue("id")]
	if !ok || j.deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "job not found"})
		return
	}
	j.deleted = true
	f.deletes++
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
