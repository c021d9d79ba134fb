package config

import (
	"os"
	"testing"
)

func TestExpandEnv_SubstitutesVariables(t *testing.T) {
	os.Setenv("ADAPTATIONENGINE_TEST_HOST", "db.example.com")
	defer os.Unsetenv("ADAPTATIONENGINE_TEST_HOST")

	in := []byte("host: ${ADAPTATIONENGINE_TEST_HOST}\nport: 5432\n")
	out := string(ExpandEnv(in))

	want := "host: db.example.com\nport: 5432\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestExpandEnv_MissingVariableBecomesEmpty(t *testing.T) {
	os.Unsetenv("ADAPTATIONENGINE_TEST_UNSET")
	in := []byte("password: ${ADAPTATIONENGINE_TEST_UNSET}\n")
	out := string(ExpandEnv(in))
	if out != "password: \n" {
		t.Fatalf("got %q", out)
	}
}
