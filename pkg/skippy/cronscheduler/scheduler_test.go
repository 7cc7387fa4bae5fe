package cronscheduler

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("parsing time %q: %v", value, err)
	}
	return ts.UTC()
}

func TestShouldFireOneTime(t *testing.T) {
	due := mustParse(t, time.RFC3339, "2026-08-01T09:00:00Z")
	j := &Job{Type: JobOneTime, Time: &due}

	if shouldFire(j, due.Add(-time.Minute)) {
		t.Fatal("expected a one_time job not yet due to not fire")
	}
	if !shouldFire(j, due) {
		t.Fatal("expected a one_time job to fire exactly at its due time")
	}
	if !shouldFire(j, due.Add(5*time.Minute)) {
		t.Fatal("expected a one_time job to still fire once overdue")
	}
}

func TestShouldFireInterval(t *testing.T) {
	now := mustParse(t, time.RFC3339, "2026-08-01T09:00:00Z")
	j := &Job{Type: JobInterval, IntervalMS: int64(10 * time.Minute / time.Millisecond)}

	if !shouldFire(j, now) {
		t.Fatal("expected an interval job with no last_fired to fire immediately")
	}

	fired := now
	j.LastFired = &fired
	if shouldFire(j, now.Add(5*time.Minute)) {
		t.Fatal("expected an interval job to not fire before its interval elapses")
	}
	if !shouldFire(j, now.Add(10*time.Minute)) {
		t.Fatal("expected an interval job to fire once its interval elapses")
	}
}

// TestShouldFireScheduleFiresOnceRegardlessOfTickJitter pins the
// Monday-09:00-UTC case: a weekly schedule must fire exactly once in its
// matching minute no matter how many times the per-minute tick jitters
// within that same minute.
func TestShouldFireScheduleFiresOnceRegardlessOfTickJitter(t *testing.T) {
	j := &Job{
		Type:     JobSchedule,
		Schedule: &WeeklySchedule{Days: []int{1}, Hour: 9, Minute: 0}, // Monday
	}

	mondayNineUTC := mustParse(t, time.RFC3339, "2026-08-03T09:00:00Z")
	if mondayNineUTC.Weekday() != time.Monday {
		t.Fatalf("test fixture is not a Monday: %v", mondayNineUTC.Weekday())
	}

	if !shouldFire(j, mondayNineUTC) {
		t.Fatal("expected the schedule to fire at its matching minute")
	}

	fired := mondayNineUTC
	j.LastFired = &fired

	jittered := mondayNineUTC.Add(37 * time.Second)
	if shouldFire(j, jittered) {
		t.Fatal("expected the schedule to not re-fire within the same minute after a jittered re-tick")
	}

	nextWeek := mondayNineUTC.AddDate(0, 0, 7)
	if !shouldFire(j, nextWeek) {
		t.Fatal("expected the schedule to fire again on the following matching week")
	}
}

func TestShouldFireScheduleIgnoresWrongDayOrTime(t *testing.T) {
	j := &Job{
		Type:     JobSchedule,
		Schedule: &WeeklySchedule{Days: []int{1}, Hour: 9, Minute: 0},
	}

	tuesdayNine := mustParse(t, time.RFC3339, "2026-08-04T09:00:00Z")
	if shouldFire(j, tuesdayNine) {
		t.Fatal("expected the schedule to not fire on a non-matching day")
	}

	mondayTen := mustParse(t, time.RFC3339, "2026-08-03T10:00:00Z")
	if shouldFire(j, mondayTen) {
		t.Fatal("expected the schedule to not fire at a non-matching hour")
	}
}

func TestShouldFireScheduleRequiresSchedule(t *testing.T) {
	j := &Job{Type: JobSchedule}
	if shouldFire(j, time.Now().UTC()) {
		t.Fatal("expected a schedule job with no WeeklySchedule to never fire")
	}
}

func TestShouldFireUnknownTypeNeverFires(t *testing.T) {
	j := &Job{Type: "bogus"}
	if shouldFire(j, time.Now().UTC()) {
		t.Fatal("expected an unknown job type to never fire")
	}
}
