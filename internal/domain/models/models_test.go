package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskInputFieldPresence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want struct {
			commentSet  bool
			commentNull bool
			comment     string
			titleSet    bool
		}
	}{
		{
			name: "absent field",
			body: `{"title":"buy milk"}`,
			want: struct {
				commentSet  bool
				commentNull bool
				comment     string
				titleSet    bool
			}{commentSet: false, commentNull: false, titleSet: true},
		},
		{
			name: "explicit null",
			body: `{"comment":null}`,
			want: struct {
				commentSet  bool
				commentNull bool
				comment     string
				titleSet    bool
			}{commentSet: true, commentNull: true},
		},
		{
			name: "value",
			body: `{"comment":"two litres"}`,
			want: struct {
				commentSet  bool
				commentNull bool
				comment     string
				titleSet    bool
			}{commentSet: true, comment: "two litres"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in TaskInput
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))

			assert.Equal(t, tt.want.commentSet, in.Comment.Set)
			assert.Equal(t, tt.want.commentNull, in.Comment.Null)
			assert.Equal(t, tt.want.comment, in.Comment.Value)
			assert.Equal(t, tt.want.titleSet, in.Title.Set)
		})
	}
}

func TestTaskInputIgnoresServerFields(t *testing.T) {
	var in TaskInput
	body := `{"title":"x","user":"mallory","id":"42","created_at":"2020-01-01T00:00:00Z","done_at":"2020-01-01T00:00:00Z"}`
	require.NoError(t, json.Unmarshal([]byte(body), &in))

	assert.True(t, in.Title.Present())
	assert.False(t, in.Status.Set)
	assert.False(t, in.DueDate.Set)
}

func TestOptionalRejectsWrongType(t *testing.T) {
	var in TaskInput
	err := json.Unmarshal([]byte(`{"title":42}`), &in)
	assert.Error(t, err)
}

func TestNewTaskResponse(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	due := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	task := &Task{
		ID:        "t1",
		UserID:    "u1",
		Title:     "buy milk",
		Status:    StatusTodo,
		Priority:  PriorityNow,
		DueDate:   &due,
		CreatedAt: created,
	}

	resp := NewTaskResponse(task, "alice")
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "alice", out["user"])
	assert.Equal(t, "2025-03-05", out["due_date"])
	assert.Nil(t, out["done_at"])
	assert.Nil(t, out["comment"])
	assert.Equal(t, "todo", out["status"])
	assert.Contains(t, out, "created_at")
}
