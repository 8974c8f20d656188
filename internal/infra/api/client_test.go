package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func authServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, 5*time.Second)
}

func TestLogin(t *testing.T) {
	_, client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("Path = %s, want /auth/login", r.URL.Path)
		}
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if body.Email != "a@b.c" || body.Password != "secret" {
			t.Errorf("Body = %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "bearer",
			"expires_in":    1800,
		})
	})

	tok, err := client.Login(context.Background(), "a@b.c", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if tok.AccessToken != "access-1" || tok.RefreshToken != "refresh-1" {
		t.Errorf("Token = %+v", tok)
	}
	if tok.ExpiresIn != 1800 {
		t.Errorf("ExpiresIn = %d, want 1800", tok.ExpiresIn)
	}
}

func TestLoginRejected(t *testing.T) {
	_, client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect email or password"})
	})

	_, err := client.Login(context.Background(), "a@b.c", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if !strings.Contains(err.Error(), "Incorrect email or password") {
		t.Errorf("Error missing backend detail: %v", err)
	}
}

func TestRefreshRevokedToken(t *testing.T) {
	_, client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/refresh" {
			t.Errorf("Path = %s, want /auth/refresh", r.URL.Path)
		}
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid refresh token"})
	})

	_, err := client.Refresh(context.Background(), "revoked")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestRefreshRotatesPair(t *testing.T) {
	_, client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.RefreshToken != "refresh-old" {
			t.Errorf("RefreshToken = %s, want refresh-old", body.RefreshToken)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-new",
			"refresh_token": "refresh-new",
			"token_type":    "bearer",
			"expires_in":    1800,
		})
	})

	tok, err := client.Refresh(context.Background(), "refresh-old")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if tok.AccessToken != "access-new" || tok.RefreshToken != "refresh-new" {
		t.Errorf("Token = %+v", tok)
	}
}

func TestLogout(t *testing.T) {
	var gotPath string
	_, client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"message": "Successfully logged out"})
	})

	if err := client.Logout(context.Background(), "refresh-1"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if gotPath != "/auth/logout" {
		t.Errorf("Path = %s, want /auth/logout", gotPath)
	}
}

func TestServerErrorIncludesStatus(t *testing.T) {
	_, client := authServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.Login(context.Background(), "a@b.c", "secret")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Errorf("502 must not map to ErrUnauthorized: %v", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("Error missing status code: %v", err)
	}
}

func TestTransportFailure(t *testing.T) {
	srv, client := authServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.Login(context.Background(), "a@b.c", "secret")
	if err == nil {
		t.Fatal("Expected a transport error")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Errorf("Transport failure must not map to ErrUnauthorized: %v", err)
	}
}
