package scenario

import (
	"fmt"
	"log"
)

// AssertionMode controls how unmet expectations are handled.
type AssertionMode int

const (
	// AssertionStrict stops the scenario on the first unmet expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs unmet expectations and keeps the scenario going.
	AssertionLogOnly
)

// Assertions reports scenario failures according to the configured mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf reports a failure that stops the scenario regardless of mode.
func (a Assertions) Failf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Assertf reports an unmet expectation. In log-only mode the failure is
// logged and the scenario continues.
func (a Assertions) Assertf(format string, args ...any) error {
	if a.Mode == AssertionLogOnly {
		if a.Logger != nil {
			a.Logger.Printf("assertion: "+format, args...)
		}
		return nil
	}
	return fmt.Errorf(format, args...)
}
