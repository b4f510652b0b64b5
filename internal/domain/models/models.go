package models

import "time"

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

type Priority string

const (
	PriorityNow  Priority = "now"
	PriorityThen Priority = "then"
)

// DateLayout is the wire format of Task.DueDate.
const DateLayout = "2006-01-02"

type Ordering string

const (
	OrderingNewest   Ordering = "-created_at"
	OrderingPriority Ordering = "priority"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is owned by exactly one user. DoneAt is non-nil iff Status is StatusDone.
type Task struct {
	ID        string
	UserID    string
	Title     string
	Status    Status
	Priority  Priority
	DueDate   *time.Time
	Comment   *string
	CreatedAt time.Time
	DoneAt    *time.Time
}

type TaskFilter struct {
	Status   *Status
	Priority *Priority
	DueDate  *time.Time
	Ordering Ordering
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,max=254,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest.Username holds either a username or an email address.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TaskInput carries client-writable task fields for create, PUT and PATCH.
// Owner, id and timestamps are server-assigned and intentionally absent.
type TaskInput struct {
	Title    Optional[string]   `json:"title"`
	Status   Optional[Status]   `json:"status"`
	Priority Optional[Priority] `json:"priority"`
	DueDate  Optional[string]   `json:"due_date"`
	Comment  Optional[string]   `json:"comment"`
}

type RegisterResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type TaskResponse struct {
	ID        string     `json:"id"`
	User      string     `json:"user"`
	Title     string     `json:"title"`
	Status    Status     `json:"status"`
	Priority  Priority   `json:"priority"`
	DueDate   *string    `json:"due_date"`
	Comment   *string    `json:"comment"`
	CreatedAt time.Time  `json:"created_at"`
	DoneAt    *time.Time `json:"done_at"`
}

func NewTaskResponse(task *Task, owner string) TaskResponse {
	resp := TaskResponse{
		ID:        task.ID,
		User:      owner,
		Title:     task.Title,
		Status:    task.Status,
		Priority:  task.Priority,
		Comment:   task.Comment,
		CreatedAt: task.CreatedAt,
		DoneAt:    task.DoneAt,
	}
	if task.DueDate != nil {
		d := task.DueDate.Format(DateLayout)
		resp.DueDate = &d
	}
	return resp
}
