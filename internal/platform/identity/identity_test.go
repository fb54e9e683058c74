package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_GetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer session-token" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon" {
			t.Errorf("unexpected apikey header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "u-1",
			"email":         "pat@example.com",
			"user_metadata": map[string]interface{}{"role": "doctor"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service", "anon", time.Second)
	u, err := c.GetUser(context.Background(), "session-token")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.ID != "u-1" || u.MetadataString("role") != "doctor" {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestClient_GetUser_NoToken(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "", "", time.Second)
	if _, err := c.GetUser(context.Background(), ""); err == nil {
		t.Error("expected error without token")
	}
}

func TestClient_UpdateUserMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/admin/users/u-9" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer service" {
			t.Errorf("expected service key, got %q", got)
		}
		var body struct {
			UserMetadata map[string]interface{} `json:"user_metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.UserMetadata["role"] != "admin" {
			t.Errorf("expected role admin in body, got %v", body.UserMetadata)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "u-9",
			"user_metadata": body.UserMetadata,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "service", "", time.Second)
	u, err := c.UpdateUserMetadata(context.Background(), "u-9", map[string]interface{}{"role": "admin"})
	if err != nil {
		t.Fatalf("UpdateUserMetadata: %v", err)
	}
	if u.MetadataString("role") != "admin" {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestClient_UpdateUserMetadata_EscapesUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/admin/users/u-1%2F..%2Fsettings%3Fx=1" {
			t.Errorf("user id should stay inside one path segment, got %q", got)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("user id must not add a query, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "u-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service", "", time.Second)
	if _, err := c.UpdateUserMetadata(context.Background(), "u-1/../settings?x=1", nil); err != nil {
		t.Fatalf("UpdateUserMetadata: %v", err)
	}
}

func TestClient_ProviderErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"msg":"User not allowed"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service", "", time.Second)
	_, err := c.UpdateUserMetadata(context.Background(), "u-1", map[string]interface{}{"role": "doctor"})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.StatusCode != http.StatusForbidden || pe.Message != "User not allowed" {
		t.Errorf("unexpected provider error %+v", pe)
	}
}

func TestClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service", "", time.Second)
	if _, err := c.UpdateUserMetadata(context.Background(), "ghost", nil); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestClient_MissingServiceKey(t *testing.T) {
	c := NewClient("http://example.invalid", "", "", time.Second)
	if _, err := c.UpdateUserMetadata(context.Background(), "u-1", nil); err == nil {
		t.Error("expected error without service key")
	}
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic()
	s.AddUser("tok", &User{ID: "u-1", Metadata: map[string]interface{}{"role": "patient"}})

	u, err := s.GetUser(ctx, "tok")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	u.Metadata["role"] = "mutated"

	again, _ := s.GetUser(ctx, "tok")
	if again.MetadataString("role") != "patient" {
		t.Error("returned users must be copies")
	}

	if _, err := s.UpdateUserMetadata(ctx, "u-1", map[string]interface{}{"role": "doctor"}); err != nil {
		t.Fatalf("UpdateUserMetadata: %v", err)
	}
	again, _ = s.GetUser(ctx, "tok")
	if again.MetadataString("role") != "doctor" {
		t.Errorf("expected doctor after update, got %q", again.MetadataString("role"))
	}

	if _, err := s.GetUser(ctx, "bogus"); err == nil {
		t.Error("expected error for unknown token")
	}
	if _, err := s.UpdateUserMetadata(ctx, "ghost", nil); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMetadataString_Nil(t *testing.T) {
	var u *User
	if u.MetadataString("role") != "" {
		t.Error("nil user should yield empty metadata")
	}
	if (&User{Metadata: map[string]interface{}{"role": 7}}).MetadataString("role") != "" {
		t.Error("non-string metadata should yield empty string")
	}
}
