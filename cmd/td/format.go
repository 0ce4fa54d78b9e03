package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/taskdesk/internal/models"
	"github.com/zulandar/taskdesk/internal/task"
)

const timeLayout = "2006-01-02 15:04"

// truncate shortens s to max runes, adding "..." if truncated.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func actionLabel(action string) string {
	if l, ok := task.ActionLabels[action]; ok {
		return l
	}
	return action
}

// formatChanges renders a history payload on one line.
func formatChanges(cs models.ChangeSet) string {
	if cs.Comment != "" {
		return fmt.Sprintf("%q", cs.Comment)
	}
	fields := make([]string, 0, len(cs.Fields))
	for f := range cs.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		fc := cs.Fields[f]
		parts[i] = fmt.Sprintf("%s: %s -> %s", f, changeValue(fc.From), changeValue(fc.To))
	}
	return strings.Join(parts, ", ")
}

func changeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%g", x)
	case string:
		if l := models.Status(x).Label(); models.Status(x).Valid() {
			return l
		}
		return x
	default:
		return fmt.Sprint(x)
	}
}
