package env

import (
	"testing"
)

func TestGetEnvPrecedence(t *testing.T) {
	old := Env
	t.Cleanup(func() { Env = old })

	Env = map[string]string{"APP_PORT": "5000"}
	t.Setenv("APP_PORT", "6000")
	t.Setenv("CACHE_HOST", "redis.internal")

	if got := GetEnv("APP_PORT", "4000"); got != "5000" {
		t.Fatalf("loaded file must win over OS env, got %q", got)
	}
	if got := GetEnv("CACHE_HOST", "localhost"); got != "redis.internal" {
		t.Fatalf("OS env must win over the default, got %q", got)
	}
	if got := GetEnv("SMTP_HOST", "localhost"); got != "localhost" {
		t.Fatalf("unset key must fall back to the default, got %q", got)
	}
}

func TestIsDev(t *testing.T) {
	old := Env
	t.Cleanup(func() { Env = old })

	Env = map[string]string{}
	if IsDev() {
		t.Fatal("IsDev must default to false")
	}
	Env = map[string]string{"APP_ENV": "dev"}
	if !IsDev() {
		t.Fatal("IsDev must report true for APP_ENV=dev")
	}
}
