package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFileTakesPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte(" file-secret \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	secret, err := Load(Source{Name: "api key", File: path, Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if secret != "file-secret" {
		t.Fatalf("expected file secret, got %q", secret)
	}
}

func TestLoadInlineValue(t *testing.T) {
	secret, err := Load(Source{Value: "  inline  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret != "inline" {
		t.Fatalf("expected trimmed inline value, got %q", secret)
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("env-file-secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JOBPILOT_TEST_KEY_FILE", path)

	secret, err := Load(Source{Name: "api key", Env: "JOBPILOT_TEST_KEY_FILE", EnvIsFile: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if secret != "env-file-secret" {
		t.Fatalf("expected secret from env file, got %q", secret)
	}
}

func TestLoadMissingSecret(t *testing.T) {
	if _, err := Load(Source{Name: "gemini api key"}); err == nil {
		t.Fatal("expected error for unconfigured secret")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(Source{File: path}); err == nil {
		t.Fatal("expected error for empty secret file")
	}
}
