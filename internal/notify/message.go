// Package notify delivers task events to chat sinks without blocking the
// code that produced them.
package notify

import (
	"fmt"
	"strings"

	"github.com/zulandar/taskdesk/internal/models"
)

// Kind identifies the event a message reports.
type Kind string

const (
	KindTaskCreated   Kind = "task_created"
	KindStatusChanged Kind = "status_changed"
	KindDigest        Kind = "unassigned_digest"
)

// Message is a rendered notification.
type Message struct {
	Kind       Kind
	Title      string
	Body       string
	TaskNumber string
}

// Text renders the message as a single plain-text block.
func (m Message) Text() string {
	if m.Body == "" {
		return m.Title
	}
	return m.Title + "\n" + m.Body
}

// CreatedMessage announces a new task.
func CreatedMessage(t models.Task) Message {
	lines := []string{
		"Создана новая задача.",
		"Номер: " + t.Number,
		"Название: " + t.Title,
		"Описание: " + t.Description,
		"Важность: " + t.Priority.PriorityLabel(),
		"Срочность: " + t.Urgency.UrgencyLabel(),
		"Статус: " + t.Status.Label(),
		"Создал: " + t.CreatedBy,
	}
	if a := t.Assignee(); a != "" {
		lines = append(lines, "Ответственный: "+a)
	}
	return Message{
		Kind:       KindTaskCreated,
		Title:      fmt.Sprintf("Новая задача %s: %s", t.Number, t.Title),
		Body:       strings.Join(lines, "\n"),
		TaskNumber: t.Number,
	}
}

// StatusChangedMessage announces a status transition.
func StatusChangedMessage(t models.Task, previous models.Status) Message {
	lines := []string{
		"Статус задачи был изменён.",
		"",
		"Номер: " + t.Number,
		"Название: " + t.Title,
		"Прошлый статус: " + previous.Label(),
		"Новый статус: " + t.Status.Label(),
		fmt.Sprintf("Текущий прогресс: %d%%", t.Progress),
	}
	if a := t.Assignee(); a != "" {
		lines = append(lines, "Ответственный: "+a)
	}
	return Message{
		Kind:       KindStatusChanged,
		Title:      "Обновление задачи " + t.Number,
		Body:       strings.Join(lines, "\n"),
		TaskNumber: t.Number,
	}
}

// DigestMessage lists active tasks nobody has taken.
func DigestMessage(tasks []models.Task) Message {
	lines := []string{"Напоминание: есть задачи без ответственных."}
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("- %s: %s (создал %s, статус: %s)",
			t.Number, t.Title, t.CreatedBy, t.Status.Label()))
	}
	return Message{
		Kind:  KindDigest,
		Title: "Напоминание о невзятых задачах",
		Body:  strings.Join(lines, "\n"),
	}
}
