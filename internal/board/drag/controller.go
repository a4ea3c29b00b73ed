// Package drag interprets drag gestures against a board. A Controller is a
// small state machine: Idle, dragging a column, or dragging a task.
package drag

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/store"
	"github.com/kandev/taskboard/internal/common/logger"
)

var (
	// ErrDragInProgress is returned by Start when a gesture is already active.
	ErrDragInProgress = errors.New("drag already in progress")
	// ErrNotDragging is returned when a gesture event does not match the
	// active gesture.
	ErrNotDragging = errors.New("no matching drag in progress")
	// ErrNotFound is returned when a gesture names an entity not on the board.
	ErrNotFound = store.ErrNotFound
)

// State is the controller state.
type State int

const (
	Idle State = iota
	DraggingColumn
	DraggingTask
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DraggingColumn:
		return "dragging_column"
	case DraggingTask:
		return "dragging_task"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Board is the set of store operations gestures are built from.
type Board interface {
	Column(id string) (models.Column, bool)
	Task(id string) (models.Task, bool)
	MoveTaskOver(activeID, overID string) (bool, error)
	MoveTaskToColumn(taskID, columnID string) (bool, error)
	SwapTasks(aID, bID string) (bool, error)
	SwapColumns(aID, bID string) (bool, error)
	FlushTask(id string) error
}

var _ Board = (*store.Store)(nil)

// Result describes what a gesture event changed.
type Result struct {
	Changed bool     `json:"changed"`
	Columns []string `json:"columns,omitempty"`
	Tasks   []string `json:"tasks,omitempty"`
}

func (r *Result) touchColumn(ids ...string) {
	for _, id := range ids {
		if id != "" && !contains(r.Columns, id) {
			r.Columns = append(r.Columns, id)
		}
	}
}

func (r *Result) touchTask(ids ...string) {
	for _, id := range ids {
		if id != "" && !contains(r.Tasks, id) {
			r.Tasks = append(r.Tasks, id)
		}
	}
}

// Controller serializes the gestures of one session.
type Controller struct {
	board  Board
	logger *logger.Logger

	mu     sync.Mutex
	state  State
	active models.DragRef
}

// NewController creates an idle controller for board.
func NewController(board Board, log *logger.Logger) *Controller {
	return &Controller{board: board, logger: log}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active returns the entity being dragged.
func (c *Controller) Active() (models.DragRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != nil
}

// Start records the dragged entity. It does not touch the board.
func (c *Controller) Start(ref models.DragRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return fmt.Errorf("%w: %s %s", ErrDragInProgress, c.active.Kind(), c.active.EntityID())
	}

	var next State
	switch r := ref.(type) {
	case models.ColumnRef:
		if _, ok := c.board.Column(r.ID); !ok {
			return fmt.Errorf("column %s: %w", r.ID, ErrNotFound)
		}
		next = DraggingColumn
	case models.TaskRef:
		if _, ok := c.board.Task(r.ID); !ok {
			return fmt.Errorf("task %s: %w", r.ID, ErrNotFound)
		}
		next = DraggingTask
	default:
		return fmt.Errorf("%w: %T", models.ErrUnknownDragKind, ref)
	}

	c.state = next
	c.active = ref
	c.logger.Debug("drag started",
		zap.String("kind", string(ref.Kind())),
		zap.String("id", ref.EntityID()))
	return nil
}

// Over applies a hover. Dragged tasks follow the hovered task or column;
// dragged columns are only reordered on End.
func (c *Controller) Over(active, over models.DragRef) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle || !models.SameRef(active, c.active) {
		return Result{}, ErrNotDragging
	}
	if over == nil || models.SameRef(active, over) {
		return Result{}, nil
	}

	switch a := active.(type) {
	case models.ColumnRef:
		return Result{}, nil
	case models.TaskRef:
		return c.hoverTask(a, over)
	default:
		return Result{}, fmt.Errorf("%w: %T", models.ErrUnknownDragKind, active)
	}
}

func (c *Controller) hoverTask(active models.TaskRef, over models.DragRef) (Result, error) {
	before, ok := c.board.Task(active.ID)
	if !ok {
		return Result{}, fmt.Errorf("task %s: %w", active.ID, ErrNotFound)
	}

	var (
		changed bool
		err     error
	)
	switch o := over.(type) {
	case models.TaskRef:
		changed, err = c.board.MoveTaskOver(active.ID, o.ID)
	case models.ColumnRef:
		changed, err = c.board.MoveTaskToColumn(active.ID, o.ID)
	default:
		return Result{}, fmt.Errorf("%w: %T", models.ErrUnknownDragKind, over)
	}
	if err != nil || !changed {
		return Result{}, err
	}

	res := Result{Changed: true}
	res.touchTask(active.ID)
	res.touchColumn(before.ColumnID)
	if after, ok := c.board.Task(active.ID); ok {
		res.touchColumn(after.ColumnID)
	}
	return res, nil
}

// End finishes the gesture and always leaves the controller Idle. A dragged
// task is flushed to the write queue even when it did not move.
func (c *Controller) End(active, over models.DragRef) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return Result{}, ErrNotDragging
	}
	recorded := c.active
	defer c.resetLocked()

	if !models.SameRef(active, recorded) {
		res, err := c.finishLocked(recorded, nil)
		if err != nil {
			return res, err
		}
		return res, ErrNotDragging
	}
	return c.finishLocked(active, over)
}

// Cancel abandons the gesture as if it ended with no target.
func (c *Controller) Cancel() (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return Result{}, nil
	}
	active := c.active
	defer c.resetLocked()
	return c.finishLocked(active, nil)
}

func (c *Controller) finishLocked(active, over models.DragRef) (Result, error) {
	switch a := active.(type) {
	case models.ColumnRef:
		return c.dropColumn(a, over)
	case models.TaskRef:
		return c.dropTask(a, over)
	default:
		return Result{}, fmt.Errorf("%w: %T", models.ErrUnknownDragKind, active)
	}
}

func (c *Controller) dropColumn(active models.ColumnRef, over models.DragRef) (Result, error) {
	target, ok := over.(models.ColumnRef)
	if !ok || target.ID == active.ID {
		return Result{}, nil
	}
	changed, err := c.board.SwapColumns(active.ID, target.ID)
	if err != nil || !changed {
		return Result{}, err
	}
	res := Result{Changed: true}
	res.touchColumn(active.ID, target.ID)
	return res, nil
}

func (c *Controller) dropTask(active models.TaskRef, over models.DragRef) (Result, error) {
	var res Result
	before, _ := c.board.Task(active.ID)
	res.touchColumn(before.ColumnID)

	switch o := over.(type) {
	case nil:
		// Still flushed below: a membership change made while hovering is
		// already in memory and must reach the store too.
	case models.TaskRef:
		if o.ID != active.ID {
			if err := c.swapTask(&res, active.ID, o.ID); err != nil {
				c.flush(active.ID)
				return res, err
			}
		}
	case models.ColumnRef:
		changed, err := c.board.MoveTaskToColumn(active.ID, o.ID)
		if err != nil {
			c.flush(active.ID)
			return res, err
		}
		if changed {
			res.Changed = true
			res.touchColumn(o.ID)
		}
	default:
		c.flush(active.ID)
		return res, fmt.Errorf("%w: %T", models.ErrUnknownDragKind, over)
	}

	if err := c.board.FlushTask(active.ID); err != nil {
		return res, err
	}
	res.touchTask(active.ID)
	return res, nil
}

// swapTask moves the dragged task into the target's column and exchanges
// their positions.
func (c *Controller) swapTask(res *Result, activeID, overID string) error {
	target, ok := c.board.Task(overID)
	if !ok {
		return fmt.Errorf("task %s: %w", overID, ErrNotFound)
	}
	moved, err := c.board.MoveTaskToColumn(activeID, target.ColumnID)
	if err != nil {
		return err
	}
	swapped, err := c.board.SwapTasks(activeID, overID)
	if err != nil {
		return err
	}
	if moved || swapped {
		res.Changed = true
		res.touchColumn(target.ColumnID)
		res.touchTask(overID)
	}
	return nil
}

// flush persists whatever the gesture already changed when the drop itself
// failed.
func (c *Controller) flush(taskID string) {
	if err := c.board.FlushTask(taskID); err != nil {
		c.logger.Warn("failed to flush dragged task", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (c *Controller) resetLocked() {
	if c.active != nil {
		c.logger.Debug("drag ended",
			zap.String("kind", string(c.active.Kind())),
			zap.String("id", c.active.EntityID()))
	}
	c.state = Idle
	c.active = nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
