package scenario

import "fmt"

// AssertionError is returned by assert steps whose check did not hold.
type AssertionError struct {
	Expected string
	Actual   string
	Message  string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected '%s', got '%s'", e.Message, e.Expected, e.Actual)
}

// StepError ties a failed step to its line in the script.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Step.Line, e.Step.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
