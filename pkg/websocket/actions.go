package websocket

// Action constants for WebSocket messages
const (
	// Health
	ActionHealthCheck = "health.check"

	// Board actions
	ActionBoardGet       = "board.get"
	ActionBoardReconcile = "board.reconcile"
	ActionBoardRetry     = "board.retry"

	// Column actions
	ActionColumnCreate = "column.create"
	ActionColumnRename = "column.rename"
	ActionColumnDelete = "column.delete"

	// Task actions
	ActionTaskCreate = "task.create"
	ActionTaskUpdate = "task.update"
	ActionTaskDelete = "task.delete"

	// Drag gesture actions
	ActionDragStart  = "drag.start"
	ActionDragOver   = "drag.over"
	ActionDragEnd    = "drag.end"
	ActionDragCancel = "drag.cancel"

	// User actions
	ActionUserGet = "user.get"

	// Notification actions (server -> client)
	ActionBoardSyncFailed    = "board.sync.failed"
	ActionBoardSyncRecovered = "board.sync.recovered"
	ActionBoardReconciled    = "board.reconciled"
)

// Error codes
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeInternalError = "INTERNAL_ERROR"
	ErrorCodeUnauthorized  = "UNAUTHORIZED"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeUnknownAction = "UNKNOWN_ACTION"
	// ErrorCodeConflict reports a gesture event that does not fit the
	// current drag state.
	ErrorCodeConflict = "CONFLICT"
)
