package task

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/taskdesk/internal/db"
)

var (
	// ErrNotFound is returned when no task has the requested id.
	ErrNotFound = fmt.Errorf("task %w", db.ErrNotFound)
	// ErrNoChanges is returned by ParseChanges for an empty payload.
	ErrNoChanges = errors.New("task: no changes")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "task: invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
