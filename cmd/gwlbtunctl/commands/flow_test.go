package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/netplane-oss/gwlbtun/internal/flowtrack"
)

func TestFetchFlows(t *testing.T) {
	want := []flowtrack.FlowSnapshot{
		{Cookie: "abcd1234", Protocol: 6, SrcAddr: "10.0.0.1", State: "RUN"},
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/flows" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(want)
	}))
	defer ts.Close()

	oldAddr := serverAddr
	serverAddr = strings.TrimPrefix(ts.URL, "http://")
	defer func() { serverAddr = oldAddr }()

	got, err := fetchFlows()
	if err != nil {
		t.Fatalf("fetchFlows: %v", err)
	}
	if len(got) != 1 || got[0].Cookie != "abcd1234" {
		t.Fatalf("fetchFlows = %+v, want %+v", got, want)
	}
}

func TestFetchFlowsNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	oldAddr := serverAddr
	serverAddr = strings.TrimPrefix(ts.URL, "http://")
	defer func() { serverAddr = oldAddr }()

	if _, err := fetchFlows(); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}
