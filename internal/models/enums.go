package models

// Status is the lifecycle state of a task. Values are stored as-is.
type Status string

const (
	StatusNew        Status = "новая"
	StatusInProgress Status = "в_работе"
	StatusTesting    Status = "тестирование"
	StatusDone       Status = "завершена"
	StatusCancelled  Status = "отменена"
)

// Level grades both the priority and the urgency of a task.
type Level string

const (
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
)

// Role is a user's access role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleWorker Role = "worker"
)

// Statuses lists every task status in workflow order.
func Statuses() []Status {
	return []Status{StatusNew, StatusInProgress, StatusTesting, StatusDone, StatusCancelled}
}

// Levels lists every priority/urgency level from most to least pressing.
func Levels() []Level {
	return []Level{LevelCritical, LevelHigh, LevelMedium, LevelLow}
}

// TerminalStatuses are the statuses after which no further work is expected.
func TerminalStatuses() []Status {
	return []Status{StatusDone, StatusCancelled}
}

// ActiveStatuses are the statuses of tasks someone is working on.
func ActiveStatuses() []Status {
	return []Status{StatusInProgress, StatusTesting}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses() {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	for _, v := range Levels() {
		if l == v {
			return true
		}
	}
	return false
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleWorker
}
