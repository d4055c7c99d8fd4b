package http

import "github.com/labstack/echo/v4"

// Handler mounts its routes on the server's router.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError points at one offending request field by its JSON path.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"track1.points[0].time"`
	Message string                 `json:"message,omitempty" example:"track1.points[0].time is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse holds one page of rows and how many rows it has.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
