package tasks

import (
	"testing"
	"time"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyStatus(t *testing.T) {
	earlier := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	now := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		task   models.Task
		status models.Status
		want   struct {
			doneAt *time.Time
		}
	}{
		{
			name:   "todo to done stamps completion",
			task:   models.Task{Status: models.StatusTodo},
			status: models.StatusDone,
			want:   struct{ doneAt *time.Time }{doneAt: &now},
		},
		{
			name:   "done to done keeps original completion",
			task:   models.Task{Status: models.StatusDone, DoneAt: &earlier},
			status: models.StatusDone,
			want:   struct{ doneAt *time.Time }{doneAt: &earlier},
		},
		{
			name:   "done to in_progress clears completion",
			task:   models.Task{Status: models.StatusDone, DoneAt: &earlier},
			status: models.StatusInProgress,
			want:   struct{ doneAt *time.Time }{doneAt: nil},
		},
		{
			name:   "todo to in_progress leaves completion unset",
			task:   models.Task{Status: models.StatusTodo},
			status: models.StatusInProgress,
			want:   struct{ doneAt *time.Time }{doneAt: nil},
		},
		{
			name:   "stray completion on open task is cleared",
			task:   models.Task{Status: models.StatusTodo, DoneAt: &earlier},
			status: models.StatusTodo,
			want:   struct{ doneAt *time.Time }{doneAt: nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := tt.task
			ApplyStatus(&task, tt.status, now)

			assert.Equal(t, tt.status, task.Status)
			if tt.want.doneAt == nil {
				assert.Nil(t, task.DoneAt)
			} else {
				require.NotNil(t, task.DoneAt)
				assert.True(t, tt.want.doneAt.Equal(*task.DoneAt))
			}
		})
	}
}

func TestApplyStatusSequencesKeepInvariant(t *testing.T) {
	sequences := [][]models.Status{
		{models.StatusDone, models.StatusTodo, models.StatusDone, models.StatusInProgress},
		{models.StatusDone, models.StatusDone, models.StatusDone},
		{models.StatusInProgress, models.StatusDone, models.StatusTodo, models.StatusTodo},
	}

	for _, seq := range sequences {
		task := models.Task{Status: models.StatusTodo}
		clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		var firstDone *time.Time
		prev := task.Status

		for _, status := range seq {
			clock = clock.Add(time.Hour)
			ApplyStatus(&task, status, clock)

			assert.Equal(t, task.Status == models.StatusDone, task.DoneAt != nil)
			if status == models.StatusDone && prev == models.StatusDone {
				require.NotNil(t, firstDone)
				assert.True(t, firstDone.Equal(*task.DoneAt), "re-entering done must not move done_at")
			}
			if status == models.StatusDone && prev != models.StatusDone {
				stamped := *task.DoneAt
				firstDone = &stamped
			}
			prev = status
		}
	}
}

func TestApplyInput(t *testing.T) {
	svc := NewService(nil)
	now := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	comment := "old"
	due := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input models.TaskInput
		want  struct {
			err      bool
			title    string
			comment  *string
			dueDate  *string
			priority models.Priority
		}
	}{
		{
			name:  "absent fields are untouched",
			input: models.TaskInput{},
			want: struct {
				err      bool
				title    string
				comment  *string
				dueDate  *string
				priority models.Priority
			}{title: "original", comment: &comment, dueDate: strPtr("2025-02-01"), priority: models.PriorityThen},
		},
		{
			name:  "null clears nullable fields",
			input: models.TaskInput{Comment: models.Null[string](), DueDate: models.Null[string]()},
			want: struct {
				err      bool
				title    string
				comment  *string
				dueDate  *string
				priority models.Priority
			}{title: "original", priority: models.PriorityThen},
		},
		{
			name:  "title is trimmed",
			input: models.TaskInput{Title: models.Some("  buy milk  "), Priority: models.Some(models.PriorityNow)},
			want: struct {
				err      bool
				title    string
				comment  *string
				dueDate  *string
				priority models.Priority
			}{title: "buy milk", comment: &comment, dueDate: strPtr("2025-02-01"), priority: models.PriorityNow},
		},
		{
			name:  "null title rejected",
			input: models.TaskInput{Title: models.Null[string]()},
			want: struct {
				err      bool
				title    string
				comment  *string
				dueDate  *string
				priority models.Priority
			}{err: true},
		},
		{
			name:  "blank title rejected",
			input: models.TaskInput{Title: models.Some("   ")},
			want: struct {
				err      bool
				title    string
				comment  *string
				dueDate  *string
				priority models.Priority
			}{err: true},
		},
		{
			name:  "unknown priority rejected",
			input: models.TaskInput{Priority: models.Some(models.Priority("later"))},
			want: struct {
				err      bool
				title    string
				comment  *string
				dueDate  *string
				priority models.Priority
			}{err: true},
		},
		{
			name:  "null status rejected",
			input: models.TaskInput{Status: models.Null[models.Status]()},
			want: struct {
				err      bool
				title    string
				comment  *string
				dueDate  *string
				priority models.Priority
			}{err: true},
		},
		{
			name:  "malformed due date rejected",
			input: models.TaskInput{DueDate: models.Some("01/02/2025")},
			want: struct {
				err      bool
				title    string
				comment  *string
				dueDate  *string
				priority models.Priority
			}{err: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := comment
			d := due
			task := models.Task{Title: "original", Status: models.StatusTodo, Priority: models.PriorityThen, Comment: &c, DueDate: &d}

			err := svc.applyInput(&task, tt.input, now)
			if tt.want.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.title, task.Title)
			assert.Equal(t, tt.want.priority, task.Priority)
			assert.Equal(t, tt.want.comment, task.Comment)
			if tt.want.dueDate == nil {
				assert.Nil(t, task.DueDate)
			} else {
				require.NotNil(t, task.DueDate)
				assert.Equal(t, *tt.want.dueDate, task.DueDate.Format(models.DateLayout))
			}
			assert.Nil(t, task.DoneAt)
		})
	}
}

func strPtr(s string) *string { return &s }

func TestApplyInputRejectsUnstorableText(t *testing.T) {
	svc := NewService(nil)
	now := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input models.TaskInput
		want  error
	}{
		{name: "nul in title", input: models.TaskInput{Title: models.Some("buy\x00milk")}, want: errors.ErrInvalidTitle},
		{name: "invalid utf8 in title", input: models.TaskInput{Title: models.Some("buy \xff milk")}, want: errors.ErrInvalidTitle},
		{name: "nul in comment", input: models.TaskInput{Comment: models.Some("note\x00")}, want: errors.ErrInvalidComment},
		{name: "invalid utf8 in comment", input: models.TaskInput{Comment: models.Some("\xfe")}, want: errors.ErrInvalidComment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := models.Task{Title: "original", Status: models.StatusTodo, Priority: models.PriorityThen}

			err := svc.applyInput(&task, tt.input, now)
			assert.ErrorIs(t, err, errors.ErrValidationFailed)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, "original", task.Title)
			assert.Nil(t, task.Comment)
		})
	}
}
