package cronscheduler

import "fmt"

func errRequiredField(field string, t JobType) error {
	return fmt.Errorf("cronscheduler: job type %q requires field %q", t, field)
}

func errUnknownType(t JobType) error {
	return fmt.Errorf("cronscheduler: unknown job type %q", t)
}

func errUnknownAction(k ActionKind) error {
	return fmt.Errorf("cronscheduler: unknown action kind %q", k)
}
