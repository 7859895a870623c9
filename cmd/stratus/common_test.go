package main

import "testing"

func TestIncompleteApplyErr(t *testing.T) {
	tests := []struct {
		name    string
		failed  int
		skipped int
		want    string
	}{
		{name: "clean apply", failed: 0, skipped: 0, want: ""},
		{name: "failures only", failed: 2, skipped: 0, want: "apply incomplete: 2 failed, 0 skipped"},
		{name: "skipped only", failed: 0, skipped: 3, want: "apply incomplete: 0 failed, 3 skipped"},
		{name: "both", failed: 1, skipped: 2, want: "apply incomplete: 1 failed, 2 skipped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := incompleteApplyErr(tt.failed, tt.skipped)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("incompleteApplyErr() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("incompleteApplyErr() = nil, want error")
			}
			if got := err.Error(); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}
