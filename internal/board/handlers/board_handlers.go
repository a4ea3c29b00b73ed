// Package handlers exposes the board over HTTP and WebSocket.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/auth"
	"github.com/kandev/taskboard/internal/board/dto"
	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/service"
	"github.com/kandev/taskboard/internal/common/logger"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

type BoardHandlers struct {
	service *service.Service
	logger  *logger.Logger
}

func NewBoardHandlers(svc *service.Service, log *logger.Logger) *BoardHandlers {
	return &BoardHandlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "board-handlers")),
	}
}

// RegisterRoutes mounts the board API under /api/v1 behind requireSession
// and registers the board actions on the dispatcher.
func RegisterRoutes(router *gin.Engine, requireSession gin.HandlerFunc, dispatcher *ws.Dispatcher, svc *service.Service, log *logger.Logger) {
	h := NewBoardHandlers(svc, log)
	h.registerHTTP(router.Group("/api/v1", requireSession))
	h.registerWS(dispatcher)
}

func (h *BoardHandlers) registerHTTP(api *gin.RouterGroup) {
	api.GET("/board", h.httpGetBoard)
	api.POST("/board/reconcile", h.httpReconcile)
	api.POST("/board/retry", h.httpRetry)
	api.POST("/columns", h.httpCreateColumn)
	api.PATCH("/columns/:id", h.httpRenameColumn)
	api.DELETE("/columns/:id", h.httpDeleteColumn)
	api.POST("/tasks", h.httpCreateTask)
	api.PATCH("/tasks/:id", h.httpUpdateTask)
	api.DELETE("/tasks/:id", h.httpDeleteTask)
}

func (h *BoardHandlers) registerWS(d *ws.Dispatcher) {
	d.RegisterFunc(ws.ActionBoardGet, h.wsGetBoard)
	d.RegisterFunc(ws.ActionBoardReconcile, h.wsReconcile)
	d.RegisterFunc(ws.ActionBoardRetry, h.wsRetry)
	d.RegisterFunc(ws.ActionColumnCreate, h.wsCreateColumn)
	d.RegisterFunc(ws.ActionColumnRename, h.wsRenameColumn)
	d.RegisterFunc(ws.ActionColumnDelete, h.wsDeleteColumn)
	d.RegisterFunc(ws.ActionTaskCreate, h.wsCreateTask)
	d.RegisterFunc(ws.ActionTaskUpdate, h.wsUpdateTask)
	d.RegisterFunc(ws.ActionTaskDelete, h.wsDeleteTask)
	d.RegisterFunc(ws.ActionDragStart, h.wsDragStart)
	d.RegisterFunc(ws.ActionDragOver, h.wsDragOver)
	d.RegisterFunc(ws.ActionDragEnd, h.wsDragEnd)
	d.RegisterFunc(ws.ActionDragCancel, h.wsDragCancel)
}

// workspace resolves the board of the session attached to ctx.
func (h *BoardHandlers) workspace(ctx context.Context) (*service.Workspace, error) {
	sess, ok := auth.SessionFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}
	return h.service.Open(ctx, sess)
}

func boardResponse(w *service.Workspace) dto.BoardResponse {
	return dto.BoardResponse{
		Board: w.Store.Snapshot(),
		Sync:  w.Store.Status(),
		Drag:  dto.FromController(w.Drag),
	}
}

func (h *BoardHandlers) getBoard(ctx context.Context) (dto.BoardResponse, error) {
	w, err := h.workspace(ctx)
	if err != nil {
		return dto.BoardResponse{}, err
	}
	return boardResponse(w), nil
}

func (h *BoardHandlers) reconcile(ctx context.Context) (dto.BoardResponse, error) {
	w, err := h.workspace(ctx)
	if err != nil {
		return dto.BoardResponse{}, err
	}
	if err := w.Reconcile(ctx); err != nil {
		return dto.BoardResponse{}, err
	}
	return boardResponse(w), nil
}

func (h *BoardHandlers) retry(ctx context.Context) (dto.RetryResponse, error) {
	w, err := h.workspace(ctx)
	if err != nil {
		return dto.RetryResponse{}, err
	}
	resumed := w.Store.Retry()
	return dto.RetryResponse{Resumed: resumed, Sync: w.Store.Status()}, nil
}

func (h *BoardHandlers) createColumn(ctx context.Context, req dto.CreateColumnRequest) (models.Column, error) {
	w, err := h.workspace(ctx)
	if err != nil {
		return models.Column{}, err
	}
	return w.Store.CreateColumn(req.Title)
}

func (h *BoardHandlers) renameColumn(ctx context.Context, req dto.RenameColumnRequest) (models.Column, error) {
	if req.ID == "" {
		return models.Column{}, validationError("id is required")
	}
	w, err := h.workspace(ctx)
	if err != nil {
		return models.Column{}, err
	}
	if err := w.Store.RenameColumn(req.ID, req.Title); err != nil {
		return models.Column{}, err
	}
	if col, ok := w.Store.Column(req.ID); ok {
		return col, nil
	}
	return models.Column{ID: req.ID, Title: req.Title, OwnerID: w.Session.OwnerID}, nil
}

func (h *BoardHandlers) deleteColumn(ctx context.Context, id string) (dto.DeleteColumnResponse, error) {
	if id == "" {
		return dto.DeleteColumnResponse{}, validationError("id is required")
	}
	w, err := h.workspace(ctx)
	if err != nil {
		return dto.DeleteColumnResponse{}, err
	}
	removed, err := w.Store.DeleteColumn(id)
	if err != nil {
		return dto.DeleteColumnResponse{}, err
	}
	if removed == nil {
		removed = []string{}
	}
	return dto.DeleteColumnResponse{ID: id, RemovedTasks: removed}, nil
}

func (h *BoardHandlers) createTask(ctx context.Context, req dto.CreateTaskRequest) (models.Task, error) {
	if req.ColumnID == "" {
		return models.Task{}, validationError("column_id is required")
	}
	w, err := h.workspace(ctx)
	if err != nil {
		return models.Task{}, err
	}
	return w.Store.CreateTask(req.ColumnID, req.Content)
}

func (h *BoardHandlers) updateTask(ctx context.Context, req dto.UpdateTaskRequest) (models.Task, error) {
	if req.ID == "" {
		return models.Task{}, validationError("id is required")
	}
	w, err := h.workspace(ctx)
	if err != nil {
		return models.Task{}, err
	}
	if err := w.Store.UpdateTask(req.ID, req.Content, req.ColumnID); err != nil {
		return models.Task{}, err
	}
	if task, ok := w.Store.Task(req.ID); ok {
		return task, nil
	}
	return models.Task{ID: req.ID, Content: req.Content, ColumnID: req.ColumnID}, nil
}

func (h *BoardHandlers) deleteTask(ctx context.Context, id string) (dto.IDRequest, error) {
	if id == "" {
		return dto.IDRequest{}, validationError("id is required")
	}
	w, err := h.workspace(ctx)
	if err != nil {
		return dto.IDRequest{}, err
	}
	if err := w.Store.DeleteTask(id); err != nil {
		return dto.IDRequest{}, err
	}
	return dto.IDRequest{ID: id}, nil
}

// HTTP handlers

func (h *BoardHandlers) httpGetBoard(c *gin.Context) {
	resp, err := h.getBoard(c.Request.Context())
	if err != nil {
		httpError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BoardHandlers) httpReconcile(c *gin.Context) {
	resp, err := h.reconcile(c.Request.Context())
	if err != nil {
		httpError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BoardHandlers) httpRetry(c *gin.Context) {
	resp, err := h.retry(c.Request.Context())
	if err != nil {
		httpError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BoardHandlers) httpCreateColumn(c *gin.Context) {
	var body dto.CreateColumnRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	col, err := h.createColumn(c.Request.Context(), body)
	if err != nil {
		httpError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (h *BoardHandlers) httpRenameColumn(c *gin.Context) {
	var body struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	col, err := h.renameColumn(c.Request.Context(), dto.RenameColumnRequest{ID: c.Param("id"), Title: body.Title})
	if err != nil {
		httpError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

func (h *BoardHandlers) httpDeleteColumn(c *gin.Context) {
	resp, err := h.deleteColumn(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BoardHandlers) httpCreateTask(c *gin.Context) {
	var body dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	task, err := h.createTask(c.Request.Context(), body)
	if err != nil {
		httpError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *BoardHandlers) httpUpdateTask(c *gin.Context) {
	var body struct {
		Content  string `json:"content"`
		ColumnID string `json:"column_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	task, err := h.updateTask(c.Request.Context(), dto.UpdateTaskRequest{
		ID:       c.Param("id"),
		Content:  body.Content,
		ColumnID: body.ColumnID,
	})
	if err != nil {
		httpError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *BoardHandlers) httpDeleteTask(c *gin.Context) {
	resp, err := h.deleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// WS handlers

func (h *BoardHandlers) wsGetBoard(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	resp, err := h.getBoard(ctx)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *BoardHandlers) wsReconcile(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	resp, err := h.reconcile(ctx)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *BoardHandlers) wsRetry(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	resp, err := h.retry(ctx)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *BoardHandlers) wsCreateColumn(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.CreateColumnRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	col, err := h.createColumn(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, col)
}

func (h *BoardHandlers) wsRenameColumn(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.RenameColumnRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	col, err := h.renameColumn(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, col)
}

func (h *BoardHandlers) wsDeleteColumn(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.IDRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	resp, err := h.deleteColumn(ctx, req.ID)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *BoardHandlers) wsCreateTask(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.CreateTaskRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	task, err := h.createTask(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, task)
}

func (h *BoardHandlers) wsUpdateTask(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.UpdateTaskRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	task, err := h.updateTask(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, task)
}

func (h *BoardHandlers) wsDeleteTask(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.IDRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	resp, err := h.deleteTask(ctx, req.ID)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}
