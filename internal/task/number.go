package task

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/taskdesk/internal/models"
	"gorm.io/gorm"
)

// maxNumberAttempts bounds retries after a task number collision.
const maxNumberAttempts = 5

// NumberPrefix returns "TASK-YYMMDD-" for day.
func NumberPrefix(day time.Time) string {
	return "TASK-" + day.Format("060102") + "-"
}

// FormatNumber renders the task number for day and sequence.
func FormatNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", NumberPrefix(day), seq)
}

// ParseNumber splits a task number into its day prefix and sequence.
func ParseNumber(number string) (prefix string, seq int, err error) {
	if !strings.HasPrefix(number, "TASK-") || len(number) < len("TASK-060102-0001") {
		return "", 0, fmt.Errorf("task: malformed number %q", number)
	}
	prefix, tail := number[:len("TASK-060102-")], number[len("TASK-060102-"):]
	seq, err = strconv.Atoi(tail)
	if err != nil || seq < 1 {
		return "", 0, fmt.Errorf("task: malformed number %q", number)
	}
	return prefix, seq, nil
}

// GenerateNumber returns the next number for day: one past the highest
// sequence already issued that day, starting at 0001.
func GenerateNumber(tx *gorm.DB, day time.Time) (string, error) {
	prefix := NumberPrefix(day)
	var last []string
	err := tx.Model(&models.Task{}).
		Where("number LIKE ?", prefix+"%").
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &last).Error
	if err != nil {
		return "", fmt.Errorf("task: next number: %w", err)
	}
	if len(last) == 0 {
		return FormatNumber(day, 1), nil
	}
	_, seq, err := ParseNumber(last[0])
	if err != nil {
		return "", err
	}
	return FormatNumber(day, seq+1), nil
}
