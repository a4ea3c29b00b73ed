// Package dto holds the request and response shapes of the board API.
package dto

import (
	"github.com/kandev/taskboard/internal/board/drag"
	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/writequeue"
)

// BoardResponse is the full board of a session together with its sync
// and gesture state.
type BoardResponse struct {
	Board models.Board     `json:"board"`
	Sync  writequeue.State `json:"sync"`
	Drag  DragStateDTO     `json:"drag"`
}

// DragStateDTO describes the gesture in progress, if any.
type DragStateDTO struct {
	State  string                 `json:"state"`
	Active *models.DragRefPayload `json:"active,omitempty"`
}

// FromController reads the gesture state of c.
func FromController(c *drag.Controller) DragStateDTO {
	out := DragStateDTO{State: c.State().String()}
	if ref, ok := c.Active(); ok {
		out.Active = models.PayloadOf(ref)
	}
	return out
}

// DragResultResponse carries the current value of every entity a gesture
// event touched.
type DragResultResponse struct {
	Changed bool            `json:"changed"`
	Columns []models.Column `json:"columns"`
	Tasks   []models.Task   `json:"tasks"`
	Drag    DragStateDTO    `json:"drag"`
}

// RetryResponse reports whether a failed queue was resumed.
type RetryResponse struct {
	Resumed bool             `json:"resumed"`
	Sync    writequeue.State `json:"sync"`
}

// DeleteColumnResponse lists the tasks removed with the column.
type DeleteColumnResponse struct {
	ID           string   `json:"id"`
	RemovedTasks []string `json:"removed_tasks"`
}

type CreateColumnRequest struct {
	Title string `json:"title"`
}

type RenameColumnRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type CreateTaskRequest struct {
	ColumnID string `json:"column_id"`
	Content  string `json:"content"`
}

// UpdateTaskRequest sets a task's content. An empty ColumnID keeps the
// task's column.
type UpdateTaskRequest struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	ColumnID string `json:"column_id,omitempty"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type DragStartRequest struct {
	Active *models.DragRefPayload `json:"active"`
}

// DragEventRequest is the payload of drag.over and drag.end. Over is null
// when the pointer is outside any target.
type DragEventRequest struct {
	Active *models.DragRefPayload `json:"active"`
	Over   *models.DragRefPayload `json:"over"`
}
