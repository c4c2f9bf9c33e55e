package main

import (
	"strings"
	"testing"
)

func TestNewSpinner(t *testing.T) {
	tests := []struct {
		name    string
		color   string
		wantErr bool
	}{
		{name: "default color", color: spinnerColor},
		{name: "unknown color", color: "ultraviolet", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := newSpinner("Working...", tt.color)
			if s == nil {
				t.Fatal("newSpinner() returned nil spinner")
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("newSpinner() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.color) {
				t.Errorf("error %q does not name the color", err)
			}
			if s.Suffix != " Working..." {
				t.Errorf("Suffix = %q", s.Suffix)
			}
		})
	}
}
