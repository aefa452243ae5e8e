package services

import (
	"testing"
	"time"

	"github.com/huangang/taskflow/internal/models"
)

func TestEventHub_NewEventHub(t *testing.T) {
	hub := NewEventHub()
	if hub == nil {
		t.Fatal("NewEventHub should not return nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("new hub should have 0 clients, got %d", hub.ClientCount())
	}
}

func TestEventHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewEventHub()

	hub.Subscribe("client1")
	hub.Subscribe("client2")
	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount())
	}

	hub.Unsubscribe("client1")
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after unsubscribe, got %d", hub.ClientCount())
	}

	hub.Unsubscribe("nonexistent")
	if hub.ClientCount() != 1 {
		t.Errorf("unsubscribing nonexistent should not affect count, got %d", hub.ClientCount())
	}
}

func TestEventHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewEventHub()
	ch := hub.Subscribe("client1")
	hub.Unsubscribe("client1")

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestEventHub_PublishMultipleClients(t *testing.T) {
	hub := NewEventHub()

	ch1 := hub.Subscribe("client1")
	ch2 := hub.Subscribe("client2")

	hub.Publish(TaskEvent{Type: EventTaskUpdated, TaskID: 7, ProjectID: 3})

	for i, ch := range []<-chan TaskEvent{ch1, ch2} {
		select {
		case received := <-ch:
			if received.TaskID != 7 {
				t.Errorf("client%d: TaskID = %d, expected 7", i+1, received.TaskID)
			}
			if received.Type != EventTaskUpdated {
				t.Errorf("client%d: Type = %q, expected %q", i+1, received.Type, EventTaskUpdated)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("client%d: timed out waiting for event", i+1)
		}
	}
}

func TestEventHub_NonBlockingPublish(t *testing.T) {
	hub := NewEventHub()
	hub.Subscribe("slow_client")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Publish(TaskEvent{TaskID: uint(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full client buffer")
	}
}

func TestNewTaskEvent(t *testing.T) {
	assignee := uint(9)
	task := &models.Task{
		ID:         5,
		ProjectID:  2,
		Title:      "Fix login bug",
		Status:     models.TaskStatusInProgress,
		Priority:   models.TaskPriorityHigh,
		AssigneeID: &assignee,
	}

	event := NewTaskEvent(EventTaskAssigned, task, 1)
	if event.TaskID != 5 || event.ProjectID != 2 {
		t.Errorf("unexpected ids: task=%d project=%d", event.TaskID, event.ProjectID)
	}
	if event.AssigneeID == nil || *event.AssigneeID != 9 {
		t.Error("AssigneeID should be 9")
	}
	if event.ActorID != 1 {
		t.Errorf("ActorID = %d, expected 1", event.ActorID)
	}
	if event.OccurredAt.IsZero() {
		t.Error("OccurredAt should be set")
	}
}

func TestGetEventHub_Singleton(t *testing.T) {
	if GetEventHub() != GetEventHub() {
		t.Error("GetEventHub should return the same instance")
	}
}
