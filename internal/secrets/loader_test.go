package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	t.Setenv("PREP_TEST_SECRET", " from-env ")

	cases := []struct {
		name    string
		src     Source
		want    string
		wantErr bool
	}{
		{name: "file wins", src: Source{File: keyFile, Value: "inline", Env: "PREP_TEST_SECRET"}, want: "from-file"},
		{name: "value before env", src: Source{Value: " inline ", Env: "PREP_TEST_SECRET"}, want: "inline"},
		{name: "env fallback", src: Source{Env: "PREP_TEST_SECRET"}, want: "from-env"},
		{name: "empty file", src: Source{File: emptyFile, Value: "inline"}, wantErr: true},
		{name: "missing file", src: Source{File: filepath.Join(dir, "missing")}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Load(tc.src)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLoadNotConfigured(t *testing.T) {
	_, err := Load(Source{Name: "gemini api key", Env: "PREP_TEST_UNSET_SECRET"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err.Error() != "gemini api key is not configured" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
