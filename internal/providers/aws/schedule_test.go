package aws

import "testing"

func TestTranslateSchedule(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{name: "nightly five field", expr: "0 3 * * *", want: "cron(0 3 * * ? *)"},
		{name: "day of month pins day of week", expr: "30 6 1 * *", want: "cron(30 6 1 * ? *)"},
		{name: "weekday range shifted", expr: "0 9 * * 1-5", want: "cron(0 9 ? * 2-6 *)"},
		{name: "sunday wraps to one", expr: "0 8 * * 0", want: "cron(0 8 ? * 1 *)"},
		{name: "list with step", expr: "0 12 * * 1,3/2", want: "cron(0 12 ? * 2,4/2 *)"},
		{name: "named days untouched", expr: "0 7 * * MON-FRI", want: "cron(0 7 ? * MON-FRI *)"},
		{name: "rate passthrough", expr: "rate(5 minutes)", want: "rate(5 minutes)"},
		{name: "cron passthrough", expr: "cron(0 18 ? * MON-FRI *)", want: "cron(0 18 ? * MON-FRI *)"},
		{name: "daily descriptor", expr: "@daily", want: "cron(0 0 * * ? *)"},
		{name: "weekly descriptor", expr: "@weekly", want: "cron(0 0 ? * 1 *)"},
		{name: "every whole hours", expr: "@every 2h", want: "rate(2 hours)"},
		{name: "every single hour", expr: "@every 1h", want: "rate(1 hour)"},
		{name: "every minutes", expr: "@every 90m", want: "rate(90 minutes)"},
		{name: "every whole days", expr: "@every 48h", want: "rate(2 days)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := translateSchedule(tt.expr)
			if err != nil {
				t.Fatalf("translateSchedule(%q) error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("translateSchedule(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestTranslateScheduleRejects(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{name: "both day fields restricted", expr: "0 0 1 * 1"},
		{name: "wrong field count", expr: "0 3 * *"},
		{name: "sub minute interval", expr: "@every 30s"},
		{name: "garbage duration", expr: "@every soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := translateSchedule(tt.expr); err == nil {
				t.Errorf("translateSchedule(%q) = %q, want error", tt.expr, got)
			}
		})
	}
}
