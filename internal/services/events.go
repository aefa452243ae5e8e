package services

import (
	"sync"
	"time"

	"github.com/huangang/taskflow/internal/models"
)

const (
	EventTaskCreated  = "task.created"
	EventTaskUpdated  = "task.updated"
	EventTaskAssigned = "task.assigned"
	EventTaskDeleted  = "task.deleted"
	EventTaskDue      = "task.due"
)

// TaskEvent is a real-time task change pushed to subscribed clients.
type TaskEvent struct {
	Type       string     `json:"type"`
	TaskID     uint       `json:"taskId"`
	ProjectID  uint       `json:"projectId"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	AssigneeID *uint      `json:"assigneeId,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	ActorID    uint       `json:"actorId,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

func NewTaskEvent(eventType string, task *models.Task, actorID uint) TaskEvent {
	return TaskEvent{
		Type:       eventType,
		TaskID:     task.ID,
		ProjectID:  task.ProjectID,
		Title:      task.Title,
		Status:     task.Status,
		Priority:   task.Priority,
		AssigneeID: task.AssigneeID,
		Deadline:   task.Deadline,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

// EventHub fans task events out to connected stream clients.
type EventHub struct {
	clients map[string]chan TaskEvent
	mu      sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[string]chan TaskEvent),
	}
}

// Subscribe registers a client and returns its buffered event channel.
func (h *EventHub) Subscribe(clientID string) <-chan TaskEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan TaskEvent, 100)
	h.clients[clientID] = ch
	return ch
}

func (h *EventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish never blocks: a client whose buffer is full misses the event.
func (h *EventHub) Publish(event TaskEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var (
	globalEventHub *EventHub
	eventHubOnce   sync.Once
)

// GetEventHub returns the process wide hub.
func GetEventHub() *EventHub {
	eventHubOnce.Do(func() {
		globalEventHub = NewEventHub()
	})
	return globalEventHub
}
