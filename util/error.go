package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/flybywiresim/ndterrain-core/log"
)

// ErrorLogger accumulates multiple errors while tracking a hierarchy of
// context strings, so that terrain-database validation can continue
// past the first problem and report everything it found.
type ErrorLogger struct {
	hierarchy []string
	errors    []string
}

func (e *ErrorLogger) Push(s string) { e.hierarchy = append(e.hierarchy, s) }
func (e *ErrorLogger) Pop()          { e.hierarchy = e.hierarchy[:len(e.hierarchy)-1] }

func (e *ErrorLogger) ErrorString(s string, args ...any) {
	e.errors = append(e.errors, strings.Join(e.hierarchy, " / ")+": "+fmt.Sprintf(s, args...))
}

func (e *ErrorLogger) Error(err error) {
	e.errors = append(e.errors, strings.Join(e.hierarchy, " / ")+": "+err.Error())
}

func (e *ErrorLogger) HaveErrors() bool { return len(e.errors) > 0 }

func (e *ErrorLogger) PrintErrors(lg *log.Logger) {
	if lg != nil {
		for _, err := range e.errors {
			lg.Errorf("%s", err)
		}
	}
	for _, err := range e.errors {
		fmt.Fprintln(os.Stderr, err)
	}
}

func (e *ErrorLogger) String() string { return strings.Join(e.errors, "\n") }
