package tasks

import (
	"strings"
	"time"
	"unicode/utf8"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"
)

const maxTitleLength = 255

// ApplyStatus moves task to status and keeps DoneAt coupled to it: entering done
// stamps now unless a completion time already exists, leaving done clears it.
func ApplyStatus(task *models.Task, status models.Status, now time.Time) {
	task.Status = status
	if status != models.StatusDone {
		task.DoneAt = nil
		return
	}
	if task.DoneAt == nil {
		doneAt := now
		task.DoneAt = &doneAt
	}
}

// applyInput merges the present fields of in into task. The status rule only
// runs when the status field is present.
func (s *Service) applyInput(task *models.Task, in models.TaskInput, now time.Time) error {
	if in.Title.Set {
		if in.Title.Null {
			return errors.Validation(errors.ErrInvalidTitle)
		}
		title := strings.TrimSpace(in.Title.Value)
		if title == "" || !storable(title) || utf8.RuneCountInString(title) > maxTitleLength {
			return errors.Validation(errors.ErrInvalidTitle)
		}
		task.Title = title
	}

	if in.Priority.Set {
		if in.Priority.Null || s.validate.Var(string(in.Priority.Value), "oneof=now then") != nil {
			return errors.Validation(errors.ErrInvalidPriority)
		}
		task.Priority = in.Priority.Value
	}

	if in.DueDate.Set {
		if in.DueDate.Null || strings.TrimSpace(in.DueDate.Value) == "" {
			task.DueDate = nil
		} else {
			due, err := parseDate(in.DueDate.Value)
			if err != nil {
				return err
			}
			task.DueDate = &due
		}
	}

	if in.Comment.Set {
		if in.Comment.Null {
			task.Comment = nil
		} else {
			comment := strings.TrimSpace(in.Comment.Value)
			if !storable(comment) {
				return errors.Validation(errors.ErrInvalidComment)
			}
			task.Comment = &comment
		}
	}

	if in.Status.Set {
		if in.Status.Null || s.validate.Var(string(in.Status.Value), "oneof=todo in_progress done") != nil {
			return errors.Validation(errors.ErrInvalidStatus)
		}
		ApplyStatus(task, in.Status.Value, now)
	}

	return nil
}

// storable reports whether text can be kept in a Postgres text column.
func storable(text string) bool {
	return utf8.ValidString(text) && !strings.ContainsRune(text, 0)
}

func parseDate(value string) (time.Time, error) {
	due, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, errors.Validation(errors.ErrInvalidDueDate)
	}
	return due, nil
}
