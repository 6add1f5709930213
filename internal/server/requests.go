package server

// Request types for WebSocket commands with validation tags.

// DevicesListRequest is the request body for devices/list.
type DevicesListRequest struct {
	Category string `json:"category" validate:"required,oneof=audio video"`
}

// EventsListRequest is the request body for events/list.
type EventsListRequest struct {
	Limit  int    `json:"limit" validate:"omitempty,gte=1,lte=500"`
	Offset int    `json:"offset" validate:"omitempty,gte=0"`
	Filter string `json:"filter" validate:"omitempty,oneof=build lifecycle"`
}
