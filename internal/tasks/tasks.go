// Package tasks is the access layer for a user's own tasks. Every operation
// takes the caller's identity explicitly and only ever touches tasks owned by
// that identity.
package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"tracker/internal/models"
	"tracker/internal/validation"
)

// ErrAuthRequired is returned when an operation is called without a signed-in user.
var ErrAuthRequired = errors.New("authentication required")

// Store is the persistence the task service needs.
type Store interface {
	ListTasks(ctx context.Context, ownerID int64) ([]models.Task, error)
	GetTask(ctx context.Context, ownerID, id int64) (models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, ownerID, id int64, title, description string, complete bool) (models.Task, error)
	DeleteTask(ctx context.Context, ownerID, id int64) error
}

// Input holds the only task fields a request may set. Ownership always comes
// from the caller's identity.
type Input struct {
	Title       string `form:"title" binding:"required,max=200"`
	Description string `form:"description"`
	Complete    bool   `form:"complete"`
}

// CreateInput is the payload for Create.
type CreateInput = Input

// UpdateInput is the payload for Update.
type UpdateInput = Input

// Normalize trims the title and normalizes line endings in the description.
func (in Input) Normalize() Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.ReplaceAll(in.Description, "\r\n", "\n")
	return in
}

// Validate checks the normalized input against its binding tags.
func (in Input) Validate() error {
	return validation.Struct(in)
}

// Listing is a user's tasks together with how many are still open.
type Listing struct {
	Tasks           []models.Task
	IncompleteCount int
}

// Service implements the five task operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService builds a Service over store.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{store: store, logger: logger}
}

func requireUser(id models.Identity) error {
	if id.Anonymous() {
		return ErrAuthRequired
	}
	return nil
}

// ListMine returns the caller's tasks, incomplete first.
func (s *Service) ListMine(ctx context.Context, id models.Identity) (Listing, error) {
	if err := requireUser(id); err != nil {
		return Listing{}, err
	}
	list, err := s.store.ListTasks(ctx, id.UserID)
	if err != nil {
		return Listing{}, err
	}

	open := 0
	for _, t := range list {
		if !t.Complete {
			open++
		}
	}
	return Listing{Tasks: list, IncompleteCount: open}, nil
}

// ViewOne returns one of the caller's tasks.
func (s *Service) ViewOne(ctx context.Context, id models.Identity, taskID int64) (models.Task, error) {
	if err := requireUser(id); err != nil {
		return models.Task{}, err
	}
	return s.store.GetTask(ctx, id.UserID, taskID)
}

// Create stores a new task owned by the caller.
func (s *Service) Create(ctx context.Context, id models.Identity, in CreateInput) (models.Task, error) {
	if err := requireUser(id); err != nil {
		return models.Task{}, err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Task{}, err
	}

	task, err := s.store.CreateTask(ctx, models.Task{
		OwnerID:     id.UserID,
		Title:       in.Title,
		Description: in.Description,
		Complete:    in.Complete,
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Debug("task created", slog.Int64("task_id", task.ID), slog.Int64("user_id", id.UserID))
	return task, nil
}

// Update overwrites the title, description and completion flag of one of the caller's tasks.
func (s *Service) Update(ctx context.Context, id models.Identity, taskID int64, in UpdateInput) (models.Task, error) {
	if err := requireUser(id); err != nil {
		return models.Task{}, err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Task{}, err
	}

	task, err := s.store.UpdateTask(ctx, id.UserID, taskID, in.Title, in.Description, in.Complete)
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Debug("task updated", slog.Int64("task_id", task.ID), slog.Int64("user_id", id.UserID))
	return task, nil
}

// Delete permanently removes one of the caller's tasks.
func (s *Service) Delete(ctx context.Context, id models.Identity, taskID int64) error {
	if err := requireUser(id); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id.UserID, taskID); err != nil {
		return err
	}
	s.logger.Debug("task deleted", slog.Int64("task_id", taskID), slog.Int64("user_id", id.UserID))
	return nil
}
