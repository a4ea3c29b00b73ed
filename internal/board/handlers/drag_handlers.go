package handlers

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/board/drag"
	"github.com/kandev/taskboard/internal/board/dto"
	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/service"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

func parseRef(p *models.DragRefPayload, field string, required bool) (models.DragRef, error) {
	if p == nil {
		if required {
			return nil, validationError(field + " is required")
		}
		return nil, nil
	}
	ref, err := p.Ref()
	if err != nil && !errors.Is(err, models.ErrUnknownDragKind) {
		return nil, validationError(field + ": " + err.Error())
	}
	return ref, err
}

// dragResult resolves the ids a gesture touched to their current values.
func dragResult(w *service.Workspace, res drag.Result) dto.DragResultResponse {
	out := dto.DragResultResponse{
		Changed: res.Changed,
		Columns: make([]models.Column, 0, len(res.Columns)),
		Tasks:   make([]models.Task, 0, len(res.Tasks)),
		Drag:    dto.FromController(w.Drag),
	}
	for _, id := range res.Columns {
		if col, ok := w.Store.Column(id); ok {
			out.Columns = append(out.Columns, col)
		}
	}
	for _, id := range res.Tasks {
		if task, ok := w.Store.Task(id); ok {
			out.Tasks = append(out.Tasks, task)
		}
	}
	return out
}

func (h *BoardHandlers) dragStart(ctx context.Context, req dto.DragStartRequest) (dto.DragResultResponse, error) {
	active, err := parseRef(req.Active, "active", true)
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	w, err := h.workspace(ctx)
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	if err := w.Drag.Start(active); err != nil {
		return dto.DragResultResponse{}, err
	}
	return dragResult(w, drag.Result{}), nil
}

func (h *BoardHandlers) dragOver(ctx context.Context, req dto.DragEventRequest) (dto.DragResultResponse, error) {
	active, err := parseRef(req.Active, "active", true)
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	over, err := parseRef(req.Over, "over", false)
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	w, err := h.workspace(ctx)
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	res, err := w.Drag.Over(active, over)
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	return dragResult(w, res), nil
}

// dragEnd always leaves the controller idle. An unreadable target counts
// as no target; an unreadable active ref abandons the gesture.
func (h *BoardHandlers) dragEnd(ctx context.Context, req dto.DragEventRequest) (dto.DragResultResponse, error) {
	w, err := h.workspace(ctx)
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	active, err := parseRef(req.Active, "active", true)
	if err != nil {
		h.abandonDrag(w)
		return dto.DragResultResponse{}, err
	}
	over, err := parseRef(req.Over, "over", false)
	if err != nil {
		h.logger.Debug("drop target ignored", zap.Error(err))
		over = nil
	}
	res, err := w.Drag.End(active, over)
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	return dragResult(w, res), nil
}

func (h *BoardHandlers) abandonDrag(w *service.Workspace) {
	if _, err := w.Drag.Cancel(); err != nil {
		h.logger.Warn("failed to cancel drag", zap.String("session_id", w.Session.ID), zap.Error(err))
	}
}

func (h *BoardHandlers) dragCancel(ctx context.Context) (dto.DragResultResponse, error) {
	w, err := h.workspace(ctx)
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	res, err := w.Drag.Cancel()
	if err != nil {
		return dto.DragResultResponse{}, err
	}
	return dragResult(w, res), nil
}

func (h *BoardHandlers) wsDragStart(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.DragStartRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	resp, err := h.dragStart(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *BoardHandlers) wsDragOver(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.DragEventRequest
	if err := msg.ParsePayload(&req); err != nil {
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	resp, err := h.dragOver(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *BoardHandlers) wsDragEnd(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	var req dto.DragEventRequest
	if err := msg.ParsePayload(&req); err != nil {
		if w, werr := h.workspace(ctx); werr == nil {
			h.abandonDrag(w)
		}
		return ws.NewError(msg.ID, msg.Action, ws.ErrorCodeBadRequest, "Invalid payload: "+err.Error(), nil)
	}
	resp, err := h.dragEnd(ctx, req)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}

func (h *BoardHandlers) wsDragCancel(ctx context.Context, msg *ws.Message) (*ws.Message, error) {
	resp, err := h.dragCancel(ctx)
	if err != nil {
		return wsError(msg, h.logger, err)
	}
	return ws.NewResponse(msg.ID, msg.Action, resp)
}
