package config

import (
	"os"
	"path/filepath"
	"testing"
)

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

func writeDotEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	return path
}

func TestLoadDotEnv_LoadsValuesAndIgnoresNoise(t *testing.T) {
	for _, k := range []string{"RENO_A", "RENO_B", "RENO_C", "RENO_D", "RENO_E"} {
		unsetEnv(t, k)
	}

	path := writeDotEnv(t, `
# comment

RENO_A=one
export RENO_B=two
RENO_C="three # not a comment"
RENO_D=four # trailing comment
not a pair
=orphan
RENO_E='five'
`)

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}

	want := map[string]string{
		"RENO_A": "one",
		"RENO_B": "two",
		"RENO_C": "three # not a comment",
		"RENO_D": "four",
		"RENO_E": "five",
	}
	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Fatalf("%s=%q, want %q", k, got, v)
		}
	}
}

func TestLoadDotEnv_DoesNotOverwriteExistingEnv(t *testing.T) {
	t.Setenv("RENO_KEEP", "already")
	t.Setenv("RENO_EMPTY", "")

	path := writeDotEnv(t, "RENO_KEEP=fromfile\nRENO_EMPTY=fromfile\n")
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}

	if got := os.Getenv("RENO_KEEP"); got != "already" {
		t.Fatalf("RENO_KEEP=%q, want %q", got, "already")
	}
	if got := os.Getenv("RENO_EMPTY"); got != "" {
		t.Fatalf("RENO_EMPTY=%q, want empty", got)
	}
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
}
