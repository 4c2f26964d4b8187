package ollama

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthorizedClientCopiesCallerClient(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	caller := &http.Client{Timeout: 5 * time.Second}
	c := authorizedClient(caller, "secret")

	if caller.Transport != nil {
		t.Fatalf("caller transport was replaced with %T", caller.Transport)
	}
	if c == caller {
		t.Fatal("expected a copy of the caller's client")
	}
	if c.Timeout != caller.Timeout {
		t.Errorf("timeout = %v, want %v", c.Timeout, caller.Timeout)
	}

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
	if got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestAuthorizedClientWithoutKey(t *testing.T) {
	caller := &http.Client{}
	if c := authorizedClient(caller, ""); c != caller {
		t.Error("expected the caller's client without an api key")
	}
	if c := authorizedClient(nil, ""); c != http.DefaultClient {
		t.Error("expected http.DefaultClient when no client is given")
	}
	if c := authorizedClient(nil, "secret"); c == http.DefaultClient || http.DefaultClient.Transport != nil {
		t.Error("http.DefaultClient must not be modified")
	}
}

func TestBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://ollama.internal:8080")

	u, err := baseURL("")
	if err != nil {
		t.Fatalf("baseURL() error = %v", err)
	}
	if u.String() != "http://ollama.internal:8080" {
		t.Errorf("env host = %s", u)
	}

	u, err = baseURL("https://models.example.com")
	if err != nil {
		t.Fatalf("baseURL() error = %v", err)
	}
	if u.Host != "models.example.com" {
		t.Errorf("explicit host = %s", u.Host)
	}
}
