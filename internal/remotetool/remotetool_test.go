package remotetool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewReturnsNilWithoutConfig(t *testing.T) {
	if New(Config{}) != nil {
		t.Fatal("expected nil client when URL/InstanceID are unset")
	}
}

func TestExecuteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body requestBody
		json.NewDecoder(r.Body).Decode(&body)
		if body.ToolName != "read_file" {
			t.Errorf("unexpected tool name: %s", body.ToolName)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": map[string]interface{}{"success": true, "result": "ok"},
		})
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, InstanceID: "inst-1", Timeout: time.Second})
	res := c.Execute(context.Background(), "read_file", json.RawMessage(`{}`))
	if res.IsError || res.Content != "ok" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteFailureResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": map[string]interface{}{"success": false, "result": "Error: boom"},
		})
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, InstanceID: "inst-1"})
	res := c.Execute(context.Background(), "bash", json.RawMessage(`{}`))
	if !res.IsError {
		t.Fatal("expected failure response to be IsError")
	}
}

func TestExecuteNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, InstanceID: "inst-1"})
	res := c.Execute(context.Background(), "bash", json.RawMessage(`{}`))
	if !res.IsError {
		t.Fatal("expected non-200 status to be IsError")
	}
}

func TestExecuteInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, InstanceID: "inst-1"})
	res := c.Execute(context.Background(), "bash", json.RawMessage(`{}`))
	if !res.IsError {
		t.Fatal("expected invalid JSON to be IsError")
	}
}
