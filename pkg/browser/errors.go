package browser

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedBrowser = errors.New("unsupported browser")
	ErrDriverLaunch       = errors.New("driver launch failed")
	ErrElementNotFound    = errors.New("element not found")
)

type UnsupportedBrowserError struct {
	Name string
}

func (e *UnsupportedBrowserError) Error() string {
	return fmt.Sprintf("unsupported browser: %q", e.Name)
}

func (e *UnsupportedBrowserError) Is(target error) bool { return target == ErrUnsupportedBrowser }

// DriverLaunchError means the browser or its driver could not be started.
type DriverLaunchError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *DriverLaunchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("launching %s (%s): %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("launching %s: %v", e.Kind, e.Err)
}

func (e *DriverLaunchError) Unwrap() error { return e.Err }

func (e *DriverLaunchError) Is(target error) bool { return target == ErrDriverLaunch }

// ElementNotFoundError means a locator did not resolve within the implicit wait.
type ElementNotFoundError struct {
	Locator Locator
	Err     error
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s: %v", e.Locator, e.Err)
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }

func (e *ElementNotFoundError) Is(target error) bool { return target == ErrElementNotFound }
