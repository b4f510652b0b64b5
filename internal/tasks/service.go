// Package tasks scopes every task read and write to the authenticated owner.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
)

// Store persists tasks. Every lookup is keyed by owner and id so that a task
// belonging to someone else is indistinguishable from a missing one.
type Store interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, userID, id string) (*models.Task, error)
	ListTasks(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, error)
	// UpdateTask runs mutate on the current row and writes the result in one
	// transaction. An error from mutate aborts the write.
	UpdateTask(ctx context.Context, userID, id string, mutate func(*models.Task) error) (*models.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
}

type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store:    store,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// WithClock replaces the time source used for created_at and done_at.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ParseFilter turns raw query values into a TaskFilter. Blank values mean no restriction.
func (s *Service) ParseFilter(status, priority, dueDate, ordering string) (models.TaskFilter, error) {
	filter := models.TaskFilter{Ordering: models.OrderingNewest}

	if status = strings.TrimSpace(status); status != "" {
		if s.validate.Var(status, "oneof=todo in_progress done") != nil {
			return filter, errors.Validation(errors.ErrInvalidStatus)
		}
		st := models.Status(status)
		filter.Status = &st
	}
	if priority = strings.TrimSpace(priority); priority != "" {
		if s.validate.Var(priority, "oneof=now then") != nil {
			return filter, errors.Validation(errors.ErrInvalidPriority)
		}
		pr := models.Priority(priority)
		filter.Priority = &pr
	}
	if strings.TrimSpace(dueDate) != "" {
		due, err := parseDate(dueDate)
		if err != nil {
			return filter, err
		}
		filter.DueDate = &due
	}
	switch models.Ordering(strings.TrimSpace(ordering)) {
	case "", models.OrderingNewest:
	case models.OrderingPriority:
		filter.Ordering = models.OrderingPriority
	default:
		return filter, errors.Validation(errors.ErrInvalidOrdering)
	}

	return filter, nil
}

func (s *Service) List(ctx context.Context, user *models.User, filter models.TaskFilter) ([]models.Task, error) {
	tasks, err := s.store.ListTasks(ctx, user.ID, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	// the store filters and orders; only ownership is checked again here
	owned := tasks[:0]
	for _, t := range tasks {
		if t.UserID == user.ID {
			owned = append(owned, t)
		}
	}
	return owned, nil
}

func (s *Service) Get(ctx context.Context, user *models.User, id string) (*models.Task, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, errors.ErrNotFound
	}
	task, err := s.store.GetTask(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task.UserID != user.ID {
		return nil, errors.ErrNotFound
	}
	return task, nil
}

func (s *Service) Create(ctx context.Context, user *models.User, in models.TaskInput) (*models.Task, error) {
	if !in.Title.Present() {
		return nil, errors.Validation(errors.ErrInvalidTitle)
	}

	now := s.now()
	task := &models.Task{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Status:    models.StatusTodo,
		Priority:  models.PriorityThen,
		CreatedAt: now,
	}
	if err := s.applyInput(task, in, now); err != nil {
		return nil, err
	}
	if !in.Status.Set {
		ApplyStatus(task, task.Status, now)
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// Update merges in into the caller's task. With full set the request replaces the
// task representation, so the title must be supplied.
func (s *Service) Update(ctx context.Context, user *models.User, id string, in models.TaskInput, full bool) (*models.Task, error) {
	id, ok := canonicalID(id)
	if !ok {
		return nil, errors.ErrNotFound
	}
	if full && !in.Title.Set {
		return nil, errors.Validation(errors.ErrInvalidTitle)
	}

	now := s.now()
	task, err := s.store.UpdateTask(ctx, user.ID, id, func(t *models.Task) error {
		if t.UserID != user.ID {
			return errors.ErrNotFound
		}
		return s.applyInput(t, in, now)
	})
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.ErrNotFound
		}
		if errors.Is(err, errors.ErrValidationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *Service) Delete(ctx context.Context, user *models.User, id string) error {
	id, ok := canonicalID(id)
	if !ok {
		return errors.ErrNotFound
	}
	if err := s.store.DeleteTask(ctx, user.ID, id); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.ErrNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// canonicalID normalizes a task id; malformed ids can never name a stored task.
func canonicalID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
