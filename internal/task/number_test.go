package task

import (
	"context"
	"testing"
	"time"

	"github.com/zulandar/taskdesk/internal/models"
)

func TestFormatNumber(t *testing.T) {
	d := time.Date(2025, 1, 9, 23, 59, 0, 0, time.UTC)
	tests := []struct {
		seq  int
		want string
	}{
		{1, "TASK-250109-0001"},
		{42, "TASK-250109-0042"},
		{9999, "TASK-250109-9999"},
		{10000, "TASK-250109-10000"},
	}
	for _, tt := range tests {
		if got := FormatNumber(d, tt.seq); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.seq, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	prefix, seq, err := ParseNumber("TASK-250109-0042")
	if err != nil || prefix != "TASK-250109-" || seq != 42 {
		t.Errorf("ParseNumber = %q, %d, %v", prefix, seq, err)
	}
	for _, bad := range []string{"", "TASK-250109", "BUG-250109-0001", "TASK-250109-abcd", "TASK-250109-0000"} {
		if _, _, err := ParseNumber(bad); err == nil {
			t.Errorf("ParseNumber(%q) should fail", bad)
		}
	}
}

func TestGenerateNumber_UsesHighestSuffix(t *testing.T) {
	gdb := openTestDB(t)
	for _, num := range []string{"TASK-240305-0001", "TASK-240305-0003", "TASK-240304-0007", "TASK-240305-9999", "TASK-240305-10000"} {
		if err := gdb.Create(&models.Task{Number: num, Title: "t", Status: models.StatusNew, CreatedBy: "a"}).Error; err != nil {
			t.Fatalf("seed %s: %v", num, err)
		}
	}
	got, err := GenerateNumber(gdb.WithContext(context.Background()), day)
	if err != nil {
		t.Fatalf("GenerateNumber: %v", err)
	}
	if got != "TASK-240305-10001" {
		t.Errorf("GenerateNumber() = %q, want TASK-240305-10001", got)
	}

	got, _ = GenerateNumber(gdb, day.AddDate(0, 0, 2))
	if got != "TASK-240307-0001" {
		t.Errorf("GenerateNumber(empty day) = %q, want TASK-240307-0001", got)
	}
}
