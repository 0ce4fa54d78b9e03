package task

import "github.com/zulandar/taskdesk/internal/models"

// Updatable field names, as used in history diffs and update payloads.
const (
	FieldStatus     = "status"
	FieldPriority   = "priority"
	FieldUrgency    = "urgency"
	FieldProgress   = "progress"
	FieldAssignedTo = "assigned_to"
)

// Change is one proposed field update. The set of implementations is
// closed: SetStatus, SetPriority, SetUrgency, SetProgress and SetAssignee.
type Change interface {
	// Field returns the column the change targets.
	Field() string
	// apply writes the change into t and reports the diff when the value
	// actually differs.
	apply(t *models.Task) (models.FieldChange, bool)
	// value is the column value written to the database.
	value() any
}

// SetStatus moves the task to a new status.
type SetStatus struct{ Status models.Status }

func (SetStatus) Field() string { return FieldStatus }
func (c SetStatus) value() any { return string(c.Status) }
func (c SetStatus) apply(t *models.Task) (models.FieldChange, bool) {
	if t.Status == c.Status {
		return models.FieldChange{}, false
	}
	fc := models.FieldChange{From: string(t.Status), To: string(c.Status)}
	t.Status = c.Status
	return fc, true
}

// SetPriority changes the priority.
type SetPriority struct{ Level models.Level }

func (SetPriority) Field() string { return FieldPriority }
func (c SetPriority) value() any { return string(c.Level) }
func (c SetPriority) apply(t *models.Task) (models.FieldChange, bool) {
	if t.Priority == c.Level {
		return models.FieldChange{}, false
	}
	fc := models.FieldChange{From: string(t.Priority), To: string(c.Level)}
	t.Priority = c.Level
	return fc, true
}

// SetUrgency changes the urgency.
type SetUrgency struct{ Level models.Level }

func (SetUrgency) Field() string { return FieldUrgency }
func (c SetUrgency) value() any { return string(c.Level) }
func (c SetUrgency) apply(t *models.Task) (models.FieldChange, bool) {
	if t.Urgency == c.Level {
		return models.FieldChange{}, false
	}
	fc := models.FieldChange{From: string(t.Urgency), To: string(c.Level)}
	t.Urgency = c.Level
	return fc, true
}

// SetProgress changes the completion percentage. The value is trusted;
// ParseChanges enforces the 0..100 range.
type SetProgress struct{ Percent int }

func (SetProgress) Field() string { return FieldProgress }
func (c SetProgress) value() any { return c.Percent }
func (c SetProgress) apply(t *models.Task) (models.FieldChange, bool) {
	if t.Progress == c.Percent {
		return models.FieldChange{}, false
	}
	fc := models.FieldChange{From: t.Progress, To: c.Percent}
	t.Progress = c.Percent
	return fc, true
}

// SetAssignee assigns the task to a display name, or clears the assignee
// when Name is nil or empty.
type SetAssignee struct{ Name *string }

// Assign returns a SetAssignee for name.
func Assign(name string) SetAssignee { return SetAssignee{Name: &name} }

// Unassign returns a SetAssignee that clears the assignee.
func Unassign() SetAssignee { return SetAssignee{} }

func (SetAssignee) Field() string { return FieldAssignedTo }

func (c SetAssignee) name() string {
	if c.Name == nil {
		return ""
	}
	return *c.Name
}

func (c SetAssignee) value() any {
	if c.name() == "" {
		return nil
	}
	return c.name()
}

func (c SetAssignee) apply(t *models.Task) (models.FieldChange, bool) {
	if t.Assignee() == c.name() {
		return models.FieldChange{}, false
	}
	fc := models.FieldChange{From: nullable(t.Assignee()), To: nullable(c.name())}
	if c.name() == "" {
		t.AssignedTo = nil
	} else {
		n := c.name()
		t.AssignedTo = &n
	}
	return fc, true
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// dedupe keeps the last change per field in first-seen order.
func dedupe(changes []Change) []Change {
	idx := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if c == nil {
			continue
		}
		if i, ok := idx[c.Field()]; ok {
			out[i] = c
			continue
		}
		idx[c.Field()] = len(out)
		out = append(out, c)
	}
	return out
}
