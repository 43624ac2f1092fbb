package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crawlkit/frontier/internal/frontier"
)

// stubAPI emulates the server's queue endpoints for CLI tests.
func stubAPI(t *testing.T) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var lastBody map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/queues/create", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/v1/queues/enqueue", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_ = json.NewEncoder(w).Encode(map[string][]string{"inserted": {"https://example.com"}})
	})
	mux.HandleFunc("/v1/queues/fetch", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_ = json.NewEncoder(w).Encode(map[string][]frontier.WorkItem{
			"items": {{UniqueKey: "https://example.com", OwnerID: "w1", LeaseExpiresAtMs: 99}},
		})
	})
	mux.HandleFunc("/v1/queues/reclaim", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_ = json.NewEncoder(w).Encode(map[string]int{"reclaimed": 3})
	})
	mux.HandleFunc("/v1/queues/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(frontier.Stats{Ready: 7})
	})
	mux.HandleFunc("/v1/queues", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]string{"queues": {"images", "news"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &lastBody
}

func execute(t *testing.T, srvURL string, args ...string) string {
	t.Helper()
	cmd := NewQueueCommand(func() string { return srvURL })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return buf.String()
}

func TestQueueAddPrintsInserted(t *testing.T) {
	srv, body := stubAPI(t)
	out := execute(t, srv.URL, "add", "--queue", "news", "--key", "https://example.com", "--forefront")
	if !strings.Contains(out, "inserted: https://example.com") {
		t.Fatalf("output: %s", out)
	}
	if (*body)["forefront"] != true || (*body)["queue"] != "news" {
		t.Fatalf("request body: %v", *body)
	}
}

func TestQueueFetchGeneratesOwner(t *testing.T) {
	srv, body := stubAPI(t)
	out := execute(t, srv.URL, "fetch", "--queue", "news", "--batch", "5")
	if !strings.Contains(out, "https://example.com") {
		t.Fatalf("output: %s", out)
	}
	owner, _ := (*body)["owner_id"].(string)
	if owner == "" {
		t.Fatalf("expected generated owner id, body: %v", *body)
	}
	if (*body)["batch_size"] != float64(5) {
		t.Fatalf("batch size: %v", *body)
	}
}

func TestQueueReclaimAndListAndStats(t *testing.T) {
	srv, _ := stubAPI(t)
	if out := execute(t, srv.URL, "reclaim", "--queue", "news"); !strings.Contains(out, "reclaimed: 3") {
		t.Fatalf("reclaim output: %s", out)
	}
	if out := execute(t, srv.URL, "list"); !strings.Contains(out, "news") || !strings.Contains(out, "images") {
		t.Fatalf("list output: %s", out)
	}
	if out := execute(t, srv.URL, "stats", "--queue", "news"); !strings.Contains(out, `"ready": 7`) {
		t.Fatalf("stats output: %s", out)
	}
}

func TestQueueCreateSendsDedup(t *testing.T) {
	srv, body := stubAPI(t)
	out := execute(t, srv.URL, "create", "--queue", "news",
		"--dedup", "bloom", "--bloom-capacity", "5000", "--bloom-fp-rate", "0.001")
	if !strings.Contains(out, "created") {
		t.Fatalf("output: %s", out)
	}
	dedup, _ := (*body)["dedup"].(map[string]interface{})
	if dedup["kind"] != "bloom" || dedup["bloomCapacity"] != float64(5000) {
		t.Fatalf("dedup body: %v", *body)
	}
}
