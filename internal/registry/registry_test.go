// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "2.4.0", "0.3.0")
}

func TestSearchModuleURL(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/modules/search" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("name") != "demo" || q.Get("version") != ">=1.0" {
			t.Errorf("unexpected query: %v", q)
		}
		if q.Get("engine") != "2.4.0" || q.Get("manager") != "0.3.0" {
			t.Errorf("host versions missing from query: %v", q)
		}
		json.NewEncoder(w).Encode(Location{URL: "https://cdn.example.com/demo-1.2.0.tar.gz", Version: "1.2.0"})
	})

	loc, err := client.SearchModule(context.Background(), "demo", ">=1.0", "")
	if err != nil {
		t.Fatalf("SearchModule() error = %v", err)
	}
	if loc == nil || loc.URL != "https://cdn.example.com/demo-1.2.0.tar.gz" {
		t.Errorf("SearchModule() = %+v", loc)
	}
	if loc.Version != "1.2.0" {
		t.Errorf("Version = %q, want 1.2.0", loc.Version)
	}
}

func TestSearchModuleSourceDescriptor(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"0.9.0","source":{"name":"demo","class":"DemoClass","path":"/opt/checkout"}}`))
	})

	loc, err := client.SearchModule(context.Background(), "demo", "", "")
	if err != nil {
		t.Fatalf("SearchModule() error = %v", err)
	}
	if loc == nil || loc.Source == nil {
		t.Fatalf("SearchModule() = %+v, want source descriptor", loc)
	}
	if loc.Source.Class != "DemoClass" || loc.Source.Path != "/opt/checkout" {
		t.Errorf("Source = %+v", loc.Source)
	}
}

func TestSearchModuleAbsent(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "404",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		},
		{
			name:    "null body",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("null")) },
		},
		{
			name:    "empty object",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{}")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, tt.handler)
			loc, err := client.SearchModule(context.Background(), "ghost", "", "")
			if err != nil {
				t.Fatalf("SearchModule() error = %v", err)
			}
			if loc != nil {
				t.Errorf("SearchModule() = %+v, want nil", loc)
			}
		})
	}
}

func TestGetModuleInfo(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/modules/info" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"versions":{"1.0.0":{"engine":[">=2.0"],"manager":[]},"2.0.0":{"engine":[">=3.0"],"manager":[">=1.0"]}}}`))
	})

	table, err := client.GetModuleInfo(context.Background(), "demo", "")
	if err != nil {
		t.Fatalf("GetModuleInfo() error = %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("GetModuleInfo() = %v, want 2 versions", table)
	}
	if info := table["1.0.0"]; len(info.Engine) != 1 || info.Engine[0] != ">=2.0" {
		t.Errorf("table[1.0.0] = %+v", info)
	}
}

func TestGetModuleInfoAbsent(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	table, err := client.GetModuleInfo(context.Background(), "ghost", "")
	if err != nil {
		t.Fatalf("GetModuleInfo() error = %v", err)
	}
	if len(table) != 0 {
		t.Errorf("GetModuleInfo() = %v, want empty table", table)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	// Keep the test fast: no retries against a permanently failing server.
	client.http.RetryMax = 0

	if _, err := client.SearchModule(context.Background(), "demo", "", ""); err == nil {
		t.Error("SearchModule() succeeded against a 500 server, want error")
	}
}
