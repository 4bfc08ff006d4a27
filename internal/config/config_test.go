package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "JWT_SIGNING_KEYS", "JWT_SECRET", "SECRET_KEY", "REDIS_HOST", "AUTH_COOKIE_SAMESITE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Server.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Server.Port)
	}
	if cfg.Server.APIKeys != nil {
		t.Fatalf("APIKeys = %v, want none", cfg.Server.APIKeys)
	}
	if cfg.Redis.Host != "localhost" || cfg.Redis.Port != "6379" {
		t.Fatalf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Auth.CookieSameSite != "strict" || cfg.Auth.JWTRefreshTTL != "7d" {
		t.Fatalf("unexpected auth config %+v", cfg.Auth)
	}
}

func TestLoadSigningKeysKeptApart(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEYS", "")
	t.Setenv("JWT_SECRET", "pa:ss,word")
	auth := Load().Auth
	if auth.JWTSigningKeys != "" || auth.JWTSecret != "pa:ss,word" {
		t.Fatalf("JWT_SECRET must stay raw, got keys=%q secret=%q", auth.JWTSigningKeys, auth.JWTSecret)
	}

	t.Setenv("JWT_SIGNING_KEYS", "k1:a,k2:b")
	if got := Load().Auth.JWTSigningKeys; got != "k1:a,k2:b" {
		t.Fatalf("JWTSigningKeys = %q", got)
	}
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "")
	if got := Load().Server.TrustedProxies; got != nil {
		t.Fatalf("TrustedProxies = %v, want none", got)
	}
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")
	if got := Load().Server.TrustedProxies; !reflect.DeepEqual(got, []string{"10.0.0.0/8", "192.0.2.1"}) {
		t.Fatalf("TrustedProxies = %v", got)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "a", want: []string{"a"}},
		{in: " a , ,b ", want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
