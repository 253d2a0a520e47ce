package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBearerTransport_InjectsToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	token := "abc"
	client := &http.Client{Transport: NewBearerTransport(nil, TokenFunc(func() string { return token }))}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if got != "Bearer abc" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer abc")
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("caller's request was mutated")
	}

	// Logged out: no header at all.
	token = ""
	resp, err = client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if got != "" {
		t.Errorf("Authorization = %q, want empty when logged out", got)
	}
}

func TestBearerTransport_KeepsExplicitHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewBearerTransport(nil, TokenFunc(func() string { return "session" }))}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Authorization", "Bearer explicit")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if got != "Bearer explicit" {
		t.Errorf("Authorization = %q, want explicit header preserved", got)
	}
}

func TestNewChromeTransport(t *testing.T) {
	rt := NewChromeTransport(5 * time.Second)
	if _, ok := rt.(*chromeTransport); !ok {
		t.Fatalf("NewChromeTransport returned %T", rt)
	}
}
