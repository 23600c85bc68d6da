package scheduler

import "testing"

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("06:30")
	if err != nil || spec != "0 30 6 * * *" {
		t.Fatalf("got %q err=%v", spec, err)
	}
	for _, bad := range []string{"", "6", "24:00", "12:60", "ab:cd"} {
		if _, err := buildDailySpec(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestScheduleEveryDaysValidation(t *testing.T) {
	s := New(nil)
	if _, err := s.ScheduleEveryDays(0, func() {}); err == nil {
		t.Fatal("expected error for zero days")
	}
}
