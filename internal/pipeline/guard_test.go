package pipeline

import "testing"

func TestIsDestructive(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"show damages on ramp 4", false},
		{"DELETE FROM inspections", true},
		{"Drop it", true},
		{"truncate the log", true},
		{"alter table", true},
		{"insert a record", true},
		{"when was this updated", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsDestructive(tt.query); got != tt.want {
			t.Errorf("IsDestructive(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
