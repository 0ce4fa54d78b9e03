package models

// PriorityLabels are the display names of priority levels.
var PriorityLabels = map[Level]string{
	LevelCritical: "Критически важно",
	LevelHigh:     "Высокая важность",
	LevelMedium:   "Средняя важность",
	LevelLow:      "Низкая важность",
}

// UrgencyLabels are the display names of urgency levels.
var UrgencyLabels = map[Level]string{
	LevelCritical: "Критично",
	LevelHigh:     "Срочно",
	LevelMedium:   "Средняя срочность",
	LevelLow:      "Не срочно",
}

// StatusLabels are the display names of task statuses.
var StatusLabels = map[Status]string{
	StatusNew:        "Новая",
	StatusInProgress: "В работе",
	StatusTesting:    "Тестирование",
	StatusDone:       "Завершена",
	StatusCancelled:  "Отменена",
}

// StatusGroup buckets statuses for board-style listings.
type StatusGroup struct {
	Key      string
	Label    string
	Statuses []Status
}

// StatusGroups returns the active, backlog and closed buckets in display order.
func StatusGroups() []StatusGroup {
	return []StatusGroup{
		{Key: "active", Label: "Активные задачи", Statuses: ActiveStatuses()},
		{Key: "backlog", Label: "Не взятые в работу", Statuses: []Status{StatusNew}},
		{Key: "closed", Label: "Закрытые задачи", Statuses: TerminalStatuses()},
	}
}

// Label returns the display name of s, or s itself when unknown.
func (s Status) Label() string {
	if l, ok := StatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// PriorityLabel returns the display name of l as a priority.
func (l Level) PriorityLabel() string {
	if v, ok := PriorityLabels[l]; ok {
		return v
	}
	return string(l)
}

// UrgencyLabel returns the display name of l as an urgency.
func (l Level) UrgencyLabel() string {
	if v, ok := UrgencyLabels[l]; ok {
		return v
	}
	return string(l)
}
