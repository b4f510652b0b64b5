package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"
)

type Storage struct {
	mu           sync.RWMutex
	users        map[string]models.User
	sessions     map[string]models.Session
	userSessions map[string]string
	tasks        map[string]models.Task
}

func NewStorage() *Storage {
	return &Storage{
		users:        make(map[string]models.User),
		sessions:     make(map[string]models.Session),
		userSessions: make(map[string]string),
		tasks:        make(map[string]models.Task),
	}
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return errors.ErrUserAlreadyExists
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return errors.ErrEmailAlreadyExists
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetOrCreateSession(_ context.Context, userID, token string, now time.Time) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.userSessions[userID]; ok {
		session := s.sessions[existing]
		return &session, nil
	}
	session := models.Session{Token: token, UserID: userID, CreatedAt: now}
	s.sessions[token] = session
	s.userSessions[userID] = token
	return &session, nil
}

func (s *Storage) GetSession(_ context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	return &session, nil
}

func (s *Storage) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[token]
	if !ok {
		return errors.ErrSessionNotFound
	}
	delete(s.sessions, token)
	delete(s.userSessions, session.UserID)
	return nil
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return errors.ErrInternalServer
	}
	s.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (s *Storage) GetTask(_ context.Context, userID, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, exists := s.tasks[id]
	if !exists || task.UserID != userID {
		return nil, errors.ErrNotFound
	}
	task = cloneTask(task)
	return &task, nil
}

func (s *Storage) ListTasks(_ context.Context, userID string, filter models.TaskFilter) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []models.Task{}
	for _, t := range s.tasks {
		if t.UserID == userID && filter.Matches(&t) {
			result = append(result, cloneTask(t))
		}
	}
	models.SortTasks(result, filter.Ordering)
	return result, nil
}

func (s *Storage) UpdateTask(_ context.Context, userID, id string, mutate func(*models.Task) error) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.tasks[id]
	if !exists || current.UserID != userID {
		return nil, errors.ErrNotFound
	}
	updated := cloneTask(current)
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	updated.ID = current.ID
	updated.UserID = current.UserID
	updated.CreatedAt = current.CreatedAt
	s.tasks[id] = cloneTask(updated)
	return &updated, nil
}

func (s *Storage) DeleteTask(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, exists := s.tasks[id]
	if !exists || task.UserID != userID {
		return errors.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// cloneTask copies the pointer fields so callers never alias stored state.
func cloneTask(t models.Task) models.Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.Comment != nil {
		c := *t.Comment
		t.Comment = &c
	}
	if t.DoneAt != nil {
		d := *t.DoneAt
		t.DoneAt = &d
	}
	return t
}
