package hub

import (
	"Chatline/internal/model"
	"sort"
	"time"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	clients := ms.getClientList()
	connectionStats := ms.getConnectionStats(len(clients))

	// Determine overall health status
	status := "healthy"
	if connectionStats.TotalConnected == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Clients:     clients,
	}
}

func (ms *MonitorService) getConnectionStats(connected int) model.ConnectionStats {
	m := ms.hub.metrics

	return model.ConnectionStats{
		TotalConnected:  connected,
		TotalAccepted:   m.totalAccepted.Load(),
		TotalSuperseded: m.totalSuperseded.Load(),
		EventsRelayed:   m.totalRelayed.Load(),
		EventsDropped:   m.totalDropped.Load(),
	}
}

// getClientList returns the registered clients, oldest connection first
func (ms *MonitorService) getClientList() []model.ClientInfo {
	snapshot := ms.hub.registry.Snapshot()
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].establishedAt.Before(snapshot[j].establishedAt)
	})

	clients := make([]model.ClientInfo, 0, len(snapshot))
	for _, client := range snapshot {
		clients = append(clients, model.ClientInfo{
			ClientID:      client.ID,
			UserID:        client.userID,
			Username:      client.username,
			EstablishedAt: client.establishedAt.Format(time.RFC3339),
			QueuedEvents:  client.queued(),
		})
	}

	return clients
}
