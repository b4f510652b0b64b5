package db

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"tasktracker/internal/domain/errors"
	"tasktracker/internal/domain/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryTimeout = 15 * time.Second

const (
	createUserQuery = `INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`
	userColumns     = `SELECT id::text, username, email, password_hash, created_at FROM users`

	insertSessionQuery = `INSERT INTO sessions (token, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (user_id) DO NOTHING`
	sessionByUserQuery = `SELECT token, user_id::text, created_at FROM sessions WHERE user_id = $1`
	sessionQuery       = `SELECT token, user_id::text, created_at FROM sessions WHERE token = $1`
	deleteSessionQuery = `DELETE FROM sessions WHERE token = $1`

	taskColumns      = `SELECT id::text, user_id::text, title, status, priority, due_date, comment, created_at, done_at FROM tasks`
	createTaskQuery  = `INSERT INTO tasks (id, user_id, title, status, priority, due_date, comment, created_at, done_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	updateTaskQuery  = `UPDATE tasks SET title = $3, status = $4, priority = $5, due_date = $6, comment = $7, done_at = $8 WHERE id = $1 AND user_id = $2`
	deleteTaskQuery  = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	orderNewest      = ` ORDER BY created_at DESC, id`
	orderPriority    = ` ORDER BY (priority = 'now') DESC, due_date ASC NULLS LAST, created_at DESC, id`
	uniqueViolation  = "23505"
	sessionAttempts  = 3
)

// Storage keeps users, sessions and tasks in Postgres. Task statements always
// carry the owner in their WHERE clause.
type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] failed to configure database pool:", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Println("[ERROR] failed to connect to database:", err)
		return nil, err
	}

	log.Println("[SUCCESS] database connection established")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, createUserQuery, user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if dup := duplicateKeyError(err); dup != nil {
			return dup
		}
		log.Println("[ERROR] failed to create user:", err)
		return err
	}
	log.Println("[SUCCESS] user created:", user.ID)
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, userColumns+` WHERE id = $1`, id)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, userColumns+` WHERE username = $1`, username)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, userColumns+` WHERE lower(email) = lower($1)`, email)
}

func (s *Storage) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] failed to read user:", err)
		return nil, err
	}
	return &user, nil
}

// GetOrCreateSession relies on the unique user_id column: a losing concurrent
// insert is a no-op and the follow-up read returns the winner's token.
func (s *Storage) GetOrCreateSession(ctx context.Context, userID, token string, now time.Time) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	for attempt := 0; attempt < sessionAttempts; attempt++ {
		if _, err := s.pool.Exec(ctx, insertSessionQuery, token, userID, now); err != nil {
			log.Println("[ERROR] failed to create session:", err)
			return nil, err
		}

		var session models.Session
		err := s.pool.QueryRow(ctx, sessionByUserQuery, userID).Scan(&session.Token, &session.UserID, &session.CreatedAt)
		if err == nil {
			return &session, nil
		}
		// a concurrent logout removed the row between the two statements
		if err != pgx.ErrNoRows {
			log.Println("[ERROR] failed to read session:", err)
			return nil, err
		}
	}
	return nil, fmt.Errorf("session for user %s kept disappearing", userID)
}

func (s *Storage) GetSession(ctx context.Context, token string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var session models.Session
	err := s.pool.QueryRow(ctx, sessionQuery, token).Scan(&session.Token, &session.UserID, &session.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrSessionNotFound
		}
		log.Println("[ERROR] failed to read session:", err)
		return nil, err
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, deleteSessionQuery, token)
	if err != nil {
		log.Println("[ERROR] failed to delete session:", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, createTaskQuery,
		task.ID, task.UserID, task.Title, string(task.Status), string(task.Priority),
		task.DueDate, task.Comment, task.CreatedAt, task.DoneAt)
	if err != nil {
		log.Println("[ERROR] failed to create task:", err)
		return err
	}
	log.Println("[SUCCESS] task created:", task.ID)
	return nil
}

func (s *Storage) GetTask(ctx context.Context, userID, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	task, err := scanTask(s.pool.QueryRow(ctx, taskColumns+` WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrNotFound
		}
		log.Println("[ERROR] failed to read task:", err)
		return nil, err
	}
	return task, nil
}

func (s *Storage) ListTasks(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query, args := listQuery(userID, filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		log.Println("[ERROR] failed to list tasks:", err)
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Println("[ERROR] failed to read task row:", err)
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		log.Println("[ERROR] failed to iterate tasks:", err)
		return nil, err
	}
	return tasks, nil
}

// UpdateTask locks the row for the duration of mutate so concurrent updates
// of one task are serialized.
func (s *Storage) UpdateTask(ctx context.Context, userID, id string, mutate func(*models.Task) error) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Println("[ERROR] failed to begin transaction:", err)
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := scanTask(tx.QueryRow(ctx, taskColumns+` WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrNotFound
		}
		log.Println("[ERROR] failed to lock task:", err)
		return nil, err
	}

	if err := mutate(task); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, updateTaskQuery,
		id, userID, task.Title, string(task.Status), string(task.Priority),
		task.DueDate, task.Comment, task.DoneAt)
	if err != nil {
		log.Println("[ERROR] failed to update task:", err)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		log.Println("[ERROR] failed to commit task update:", err)
		return nil, err
	}
	return task, nil
}

func (s *Storage) DeleteTask(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, deleteTaskQuery, id, userID)
	if err != nil {
		log.Println("[ERROR] failed to delete task:", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	log.Println("[SUCCESS] task deleted:", id)
	return nil
}

func listQuery(userID string, filter models.TaskFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(taskColumns)
	sb.WriteString(` WHERE user_id = $1`)
	args := []any{userID}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		fmt.Fprintf(&sb, ` AND status = $%d`, len(args))
	}
	if filter.Priority != nil {
		args = append(args, string(*filter.Priority))
		fmt.Fprintf(&sb, ` AND priority = $%d`, len(args))
	}
	if filter.DueDate != nil {
		args = append(args, *filter.DueDate)
		fmt.Fprintf(&sb, ` AND due_date = $%d`, len(args))
	}

	if filter.Ordering == models.OrderingPriority {
		sb.WriteString(orderPriority)
	} else {
		sb.WriteString(orderNewest)
	}
	return sb.String(), args
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		task             models.Task
		status, priority string
	)
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &status, &priority,
		&task.DueDate, &task.Comment, &task.CreatedAt, &task.DoneAt)
	if err != nil {
		return nil, err
	}
	task.Status = models.Status(status)
	task.Priority = models.Priority(priority)
	if task.DueDate != nil {
		due := time.Date(task.DueDate.Year(), task.DueDate.Month(), task.DueDate.Day(), 0, 0, 0, 0, time.UTC)
		task.DueDate = &due
	}
	task.CreatedAt = task.CreatedAt.UTC()
	if task.DoneAt != nil {
		done := task.DoneAt.UTC()
		task.DoneAt = &done
	}
	return &task, nil
}

func duplicateKeyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return errors.ErrEmailAlreadyExists
	}
	return errors.ErrUserAlreadyExists
}
