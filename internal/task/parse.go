package task

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/zulandar/taskdesk/internal/models"
)

// NameChecker reports whether a display name belongs to a user.
type NameChecker interface {
	NameExists(ctx context.Context, name string) (bool, error)
}

var fieldOrder = []string{FieldStatus, FieldPriority, FieldUrgency, FieldProgress, FieldAssignedTo}

// ParseChanges validates a loosely typed update payload, such as a decoded
// JSON body, and converts it into changes. Every problem is reported in one
// *ValidationError. An assigned_to of nil, "" or "null" clears the assignee;
// any other name must exist according to names.
func ParseChanges(ctx context.Context, payload map[string]any, names NameChecker) ([]Change, error) {
	if len(payload) == 0 {
		return nil, ErrNoChanges
	}
	ve := &ValidationError{}

	var unknown []string
	for k := range payload {
		if !isUpdatable(k) {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		ve.add(k, "field cannot be updated")
	}

	var changes []Change
	for _, field := range fieldOrder {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		switch field {
		case FieldStatus:
			st := models.Status(asString(raw))
			if !st.Valid() {
				ve.add(field, fmt.Sprintf("unknown status %v", raw))
				continue
			}
			changes = append(changes, SetStatus{Status: st})
		case FieldPriority, FieldUrgency:
			lvl := models.Level(asString(raw))
			if !lvl.Valid() {
				ve.add(field, fmt.Sprintf("unknown level %v", raw))
				continue
			}
			if field == FieldPriority {
				changes = append(changes, SetPriority{Level: lvl})
			} else {
				changes = append(changes, SetUrgency{Level: lvl})
			}
		case FieldProgress:
			p, err := parseProgress(raw)
			if err != nil {
				ve.add(field, err.Error())
				continue
			}
			changes = append(changes, SetProgress{Percent: p})
		case FieldAssignedTo:
			c, msg, err := parseAssignee(ctx, raw, names)
			if err != nil {
				return nil, err
			}
			if msg != "" {
				ve.add(field, msg)
				continue
			}
			changes = append(changes, c)
		}
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}
	return changes, nil
}

func isUpdatable(field string) bool {
	for _, f := range fieldOrder {
		if f == field {
			return true
		}
	}
	return false
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func parseProgress(raw any) (int, error) {
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("must be an integer, got %v", v)
		}
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %s", v)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", v)
		}
		n = i
	default:
		return 0, fmt.Errorf("must be an integer, got %T", raw)
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("must be between 0 and 100, got %d", n)
	}
	return n, nil
}

// parseAssignee returns the change, or a validation message, or a lookup
// error.
func parseAssignee(ctx context.Context, raw any, names NameChecker) (Change, string, error) {
	if raw == nil {
		return Unassign(), "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Sprintf("must be a user name, got %T", raw), nil
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return Unassign(), "", nil
	}
	if names == nil {
		return Assign(s), "", nil
	}
	ok, err := names.NameExists(ctx, s)
	if err != nil {
		return nil, "", fmt.Errorf("task: check assignee: %w", err)
	}
	if !ok {
		return nil, fmt.Sprintf("unknown user %q", s), nil
	}
	return Assign(s), "", nil
}
