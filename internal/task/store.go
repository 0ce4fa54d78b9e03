// Package task owns the task lifecycle: numbering, creation, diff-based
// updates with history, and comments.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zulandar/taskdesk/internal/db"
	"github.com/zulandar/taskdesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// History action labels.
const (
	ActionCreated      = "created"
	ActionUpdated      = "updated"
	ActionCommentAdded = "comment added"
)

// ActionLabels are the Russian captions shown for history actions.
var ActionLabels = map[string]string{
	ActionCreated:      "Создана задача",
	ActionUpdated:      "Обновление задачи",
	ActionCommentAdded: "Добавлен комментарий",
}

// AnonymousAuthor is recorded when a task is created without an author.
const AnonymousAuthor = "Аноним"

// previewLen is the number of characters kept in a comment preview.
const previewLen = 50

// Notifier receives task events after they commit. Implementations must not
// block.
type Notifier interface {
	NotifyCreated(t models.Task)
	NotifyStatusChanged(t models.Task, previous models.Status)
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets the event receiver.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store persists tasks with their history and comments. Every operation
// runs in a single transaction.
type Store struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
	validate *validator.Validate

	// mu serializes number assignment within the process.
	mu         sync.Mutex
	nextNumber func(tx *gorm.DB, day time.Time) (string, error)
}

// NewStore returns a task store on gdb.
func NewStore(gdb *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:         gdb,
		now:        time.Now,
		validate:   newValidator(),
		nextNumber: GenerateNumber,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateInput is the data accepted for a new task.
type CreateInput struct {
	Title       string       `json:"title" validate:"required,max=255"`
	Description string       `json:"description"`
	Priority    models.Level `json:"priority" validate:"required,oneof=critical high medium low"`
	Urgency     models.Level `json:"urgency" validate:"required,oneof=critical high medium low"`
	CreatedBy   string       `json:"created_by" validate:"max=128"`
}

func (in *CreateInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	if in.Priority == "" {
		in.Priority = models.LevelMedium
	}
	if in.Urgency == "" {
		in.Urgency = models.LevelMedium
	}
	if in.CreatedBy == "" {
		in.CreatedBy = AnonymousAuthor
	}
}

// Create stores a new task in status "новая" with progress 0 and a single
// "created" history entry. Number collisions are retried with a fresh number.
func (s *Store) Create(ctx context.Context, in CreateInput) (*models.Task, error) {
	in.normalize()
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	t, err := s.insertNumbered(ctx, in)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.NotifyCreated(*t)
	}
	return t, nil
}

func (s *Store) insertNumbered(ctx context.Context, in CreateInput) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		t, err := s.insert(ctx, in)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, db.ErrConflict) {
			return nil, fmt.Errorf("task: create: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("task: create: number still taken after %d attempts: %w", maxNumberAttempts, lastErr)
}

func (s *Store) insert(ctx context.Context, in CreateInput) (*models.Task, error) {
	now := s.now()
	var t models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.nextNumber(tx, now)
		if err != nil {
			return err
		}
		t = models.Task{
			Number:      number,
			Title:       in.Title,
			Description: in.Description,
			Priority:    in.Priority,
			Urgency:     in.Urgency,
			Status:      models.StatusNew,
			Progress:    0,
			CreatedBy:   in.CreatedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Omit(clause.Associations).Create(&t).Error; err != nil {
			return db.Classify(err)
		}
		entry := models.HistoryEntry{
			TaskID:    t.ID,
			Action:    ActionCreated,
			Actor:     in.CreatedBy,
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		t.History = []models.HistoryEntry{entry}
		t.Comments = []models.Comment{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Get returns the task with its history and comments in time order.
func (s *Store) Get(ctx context.Context, id uint) (*models.Task, error) {
	return get(s.db.WithContext(ctx), id)
}

func get(tx *gorm.DB, id uint) (*models.Task, error) {
	var t models.Task
	chrono := func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC, id ASC") }
	err := tx.Preload("History", chrono).Preload("Comments", chrono).Take(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("task: get %d: %w", id, err)
	}
	return &t, nil
}

// List returns tasks newest first. Tasks in a terminal status are omitted
// unless includeClosed is set.
func (s *Store) List(ctx context.Context, includeClosed bool) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if !includeClosed {
		q = q.Where("status NOT IN ?", models.TerminalStatuses())
	}
	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	return tasks, nil
}

// UnassignedActive returns active tasks that nobody is assigned to, oldest
// first.
func (s *Store) UnassignedActive(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("(assigned_to IS NULL OR assigned_to = '') AND status IN ?", models.ActiveStatuses()).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("task: unassigned active: %w", err)
	}
	return tasks, nil
}

// Update applies changes on behalf of actor. Changes whose value equals the
// stored one are ignored; when nothing differs no row or history entry is
// written. Otherwise the field writes, updated_at and one "updated" history
// entry commit together.
func (s *Store) Update(ctx context.Context, id uint, changes []Change, actor string) (*models.Task, error) {
	changes = dedupe(changes)
	var (
		before  models.Status
		after   models.Status
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Task
		err := tx.Take(&t, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		before = t.Status

		diff := map[string]models.FieldChange{}
		cols := map[string]any{}
		for _, c := range changes {
			fc, ok := c.apply(&t)
			if !ok {
				continue
			}
			diff[c.Field()] = fc
			cols[c.Field()] = c.value()
		}
		after = t.Status
		if len(diff) == 0 {
			return nil
		}
		changed = true

		now := s.now()
		cols["updated_at"] = now
		if err := tx.Model(&models.Task{ID: id}).UpdateColumns(cols).Error; err != nil {
			return err
		}
		return tx.Create(&models.HistoryEntry{
			TaskID:    id,
			Action:    ActionUpdated,
			Actor:     actor,
			Changes:   models.ChangeSet{Fields: diff},
			CreatedAt: now,
		}).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("task: update %d: %w", id, err)
	}

	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed && before != after && s.notifier != nil {
		s.notifier.NotifyStatusChanged(*t, before)
	}
	return t, nil
}

// AddComment appends a comment and a "comment added" history entry holding
// its preview.
func (s *Store) AddComment(ctx context.Context, id uint, text, actor string) (*models.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Fields: map[string]string{"text": "comment must not be empty"}}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Task{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		now := s.now()
		if err := tx.Create(&models.Comment{TaskID: id, Author: actor, Text: text, CreatedAt: now}).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.HistoryEntry{
			TaskID:    id,
			Action:    ActionCommentAdded,
			Actor:     actor,
			Changes:   models.ChangeSet{Comment: Preview(text)},
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Task{ID: id}).UpdateColumn("updated_at", now).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("task: comment %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Preview shortens text to its first 50 characters followed by "..." when
// it is longer.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "..."
}
