package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const gridPayload = `{
	"properties": {
		"temperature": {
			"values": [{"validTime": "2024-01-01T00:00:00Z/PT2H", "value": -1.5}]
		}
	}
}`

func TestFetchGridFollowsPointMetadata(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/point", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("point request User-Agent = %q, want %q", got, "test-agent")
		}
		fmt.Fprintf(w, `{"properties":{"forecastGridData":%q}}`, srv.URL+"/grid")
	})
	mux.HandleFunc("/grid", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("grid request User-Agent = %q, want %q", got, "test-agent")
		}
		fmt.Fprint(w, gridPayload)
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL+"/point", "test-agent")
	doc, err := client.FetchGrid(context.Background())
	if err != nil {
		t.Fatalf("fetch grid: %v", err)
	}

	prop, err := doc.Property("temperature")
	if err != nil {
		t.Fatalf("property: %v", err)
	}
	if len(prop.Values) != 1 || prop.Values[0].Value != -1.5 {
		t.Fatalf("unexpected property values: %+v", prop.Values)
	}
	if prop.Values[0].ValidTime != "2024-01-01T00:00:00Z/PT2H" {
		t.Fatalf("unexpected validTime: %q", prop.Values[0].ValidTime)
	}
}

func TestFetchGridServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL+"/point", "test-agent")
	if _, err := client.FetchGrid(context.Background()); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestFetchGridMissingGridURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties":{}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), srv.URL+"/point", "test-agent")
	if _, err := client.FetchGrid(context.Background()); err == nil {
		t.Fatal("expected error when point metadata has no forecastGridData url")
	}
}
