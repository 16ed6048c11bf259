package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tracker/internal/models"
	"tracker/internal/tasks"
)

// taskForm lists every field a task form may submit. Anything else in the
// request body, such as an owner, is ignored by binding.
type taskForm struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	Complete    string `form:"complete"`
}

func (f taskForm) input() tasks.Input {
	return tasks.Input{
		Title:       f.Title,
		Description: f.Description,
		Complete:    checkboxChecked(f.Complete),
	}
}

// checkboxChecked interprets an HTML checkbox value.
func checkboxChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func mustIdentity(c *gin.Context) models.Identity {
	id, _ := identityFrom(c)
	return id
}

// handleListTasks renders the caller's tasks, incomplete first.
func (s *Server) handleListTasks(c *gin.Context) {
	listing, err := s.tasks.ListMine(c.Request.Context(), mustIdentity(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "task_list.html", s.page(c, "My tasks", gin.H{
		"Tasks": listing.Tasks,
		"Count": listing.IncompleteCount,
	}))
}

// handleViewTask renders one task.
func (s *Server) handleViewTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	task, err := s.tasks.ViewOne(c.Request.Context(), mustIdentity(c), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "task_detail.html", s.page(c, task.Title, gin.H{"Task": task}))
}

// handleNewTaskPage renders an empty task form.
func (s *Server) handleNewTaskPage(c *gin.Context) {
	c.HTML(http.StatusOK, "task_form.html", s.page(c, "New task", gin.H{
		"Action": "/tasks/new",
		"Form":   tasks.Input{},
	}))
}

// handleCreateTask stores a task for the caller.
func (s *Server) handleCreateTask(c *gin.Context) {
	var form taskForm
	if err := bindForm(c, &form); err != nil {
		s.renderError(c, err)
		return
	}

	in := form.input()
	_, err := s.tasks.Create(c.Request.Context(), mustIdentity(c), in)
	if s.rerenderInvalid(c, err, "New task", "/tasks/new", in) {
		return
	}
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handleEditTaskPage renders the task form pre-filled with current values.
func (s *Server) handleEditTaskPage(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	task, err := s.tasks.ViewOne(c.Request.Context(), mustIdentity(c), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "task_form.html", s.page(c, "Edit task", gin.H{
		"Action": c.Request.URL.Path,
		"Task":   task,
		"Form": tasks.Input{
			Title:       task.Title,
			Description: task.Description,
			Complete:    task.Complete,
		},
	}))
}

// handleUpdateTask overwrites an existing task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	var form taskForm
	if err := bindForm(c, &form); err != nil {
		s.renderError(c, err)
		return
	}

	in := form.input()
	_, err := s.tasks.Update(c.Request.Context(), mustIdentity(c), id, in)
	if s.rerenderInvalid(c, err, "Edit task", c.Request.URL.Path, in) {
		return
	}
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// handleDeleteTaskPage asks for confirmation before deleting.
func (s *Server) handleDeleteTaskPage(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	task, err := s.tasks.ViewOne(c.Request.Context(), mustIdentity(c), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "task_delete.html", s.page(c, "Delete task", gin.H{"Task": task}))
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := s.parseID(c, "id")
	if !ok {
		return
	}
	if err := s.tasks.Delete(c.Request.Context(), mustIdentity(c), id); err != nil {
		s.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// rerenderInvalid shows the task form again with field errors when err is a
// validation failure, and reports whether it did.
func (s *Server) rerenderInvalid(c *gin.Context, err error, title, action string, in tasks.Input) bool {
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	c.HTML(http.StatusUnprocessableEntity, "task_form.html", s.page(c, title, gin.H{
		"Action": action,
		"Form":   in,
		"Errors": verr.Fields,
	}))
	return true
}
