package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"mercator-hq/readbreak/pkg/config"
)

func TestNewAuthProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.GitAuthConfig
		wantType string
		wantErr  bool
	}{
		{name: "nil", cfg: nil, wantType: "none"},
		{name: "empty", cfg: &config.GitAuthConfig{}, wantType: "none"},
		{name: "none", cfg: &config.GitAuthConfig{Type: "none"}, wantType: "none"},
		{name: "token", cfg: &config.GitAuthConfig{Type: "token", Token: "t0k"}, wantType: "token"},
		{name: "token missing", cfg: &config.GitAuthConfig{Type: "token"}, wantErr: true},
		{name: "ssh", cfg: &config.GitAuthConfig{Type: "ssh", SSHKeyPath: "/k"}, wantType: "ssh"},
		{name: "ssh missing", cfg: &config.GitAuthConfig{Type: "ssh"}, wantErr: true},
		{name: "unknown", cfg: &config.GitAuthConfig{Type: "kerberos"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewAuthProvider(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewAuthProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && p.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", p.Type(), tt.wantType)
			}
		})
	}
}

func TestTokenAuth(t *testing.T) {
	auth, err := NewTokenAuth("secret").Auth()
	if err != nil {
		t.Fatal(err)
	}
	basic, ok := auth.(*http.BasicAuth)
	if !ok {
		t.Fatalf("expected *http.BasicAuth, got %T", auth)
	}
	if basic.Password != "secret" {
		t.Errorf("Password = %q", basic.Password)
	}

	if _, err := NewTokenAuth("").Auth(); err == nil {
		t.Error("empty token should error")
	}
}

func TestSSHAuth_Errors(t *testing.T) {
	if _, err := NewSSHAuth("", "").Auth(); err == nil {
		t.Error("empty key path should error")
	}
	if _, err := NewSSHAuth(filepath.Join(t.TempDir(), "missing"), "").Auth(); err == nil {
		t.Error("missing key should error")
	}

	key := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(key, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSSHAuth(key, "").Auth(); err == nil {
		t.Error("world-readable key should error")
	}

	if err := os.Chmod(key, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSSHAuth(key, "").Auth(); err == nil {
		t.Error("malformed key should error")
	}
}

func TestNoAuth(t *testing.T) {
	auth, err := NoAuth{}.Auth()
	if err != nil || auth != nil {
		t.Errorf("NoAuth.Auth() = %v, %v", auth, err)
	}
}
