package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	dir := isolateConfig(t)
	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("ui: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"unknown flag", []string{"--bogus"}, true},
		{"malformed config", []string{"--config", broken}, true},
		{"help", []string{"--help"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args)
			if tt.wantErr {
				assertError(t, err, tt.name)
				return
			}
			assertNoError(t, err)
		})
	}
}
