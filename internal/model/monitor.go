package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"`      // "healthy", "idle"
	Connections ConnectionStats `json:"connections"` // Client connection stats
	Clients     []ClientInfo    `json:"clients"`     // List of registered clients
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnected  int   `json:"totalConnected"`  // Users with a registered connection
	TotalAccepted   int64 `json:"totalAccepted"`   // Connections accepted since start
	TotalSuperseded int64 `json:"totalSuperseded"` // Registry entries replaced by a newer connection
	EventsRelayed   int64 `json:"eventsRelayed"`   // Events delivered to a peer queue
	EventsDropped   int64 `json:"eventsDropped"`   // Directed events whose target was offline
}

// ClientInfo contains information about a connected client
type ClientInfo struct {
	ClientID      string `json:"clientId"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	EstablishedAt string `json:"establishedAt"` // ISO timestamp
	QueuedEvents  int    `json:"queuedEvents"`  // Events waiting in the outbound queue
}
