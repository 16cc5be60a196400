package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegistry_StartStop(t *testing.T) {
	registry := NewRegistry(&mockLogger{})
	ctx := context.Background()

	if err := registry.Start(ctx); err != nil {
		t.Fatalf("Failed to start registry: %v", err)
	}
	if !registry.IsRunning() {
		t.Error("Registry should be running after start")
	}
	if err := registry.Start(ctx); err == nil {
		t.Error("Starting twice should fail")
	}

	conn := newMockConnection("conn-1")
	registry.Add(conn)

	if err := registry.Stop(ctx); err != nil {
		t.Fatalf("Failed to stop registry: %v", err)
	}
	if registry.IsRunning() {
		t.Error("Registry should not be running after stop")
	}
	if !conn.IsClosed() {
		t.Error("Stop should close registered connections")
	}
	if registry.Count() != 0 {
		t.Errorf("Expected 0 connections after stop, got %d", registry.Count())
	}
}

func TestRegistry_AddRemove(t *testing.T) {
	registry := NewRegistry(&mockLogger{})

	if registry.Count() != 0 {
		t.Errorf("Expected 0 connections, got %d", registry.Count())
	}

	conn := newMockConnection("test-conn-1")
	registry.Add(conn)
	registry.Add(conn)

	if registry.Count() != 1 {
		t.Errorf("Expected 1 connection after duplicate add, got %d", registry.Count())
	}

	got, exists := registry.Get("test-conn-1")
	if !exists || got != conn {
		t.Error("Connection should be retrievable by ID")
	}

	if err := registry.Remove(conn); err != nil {
		t.Fatalf("Failed to remove connection: %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Expected 0 connections after removal, got %d", registry.Count())
	}
	if conn.IsClosed() {
		t.Error("Remove must not close the connection")
	}

	err := registry.Remove(conn)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second removal, got %v", err)
	}
}

func TestRegistry_RemoveChecksIdentity(t *testing.T) {
	registry := NewRegistry(&mockLogger{})

	registered := newMockConnection("same-id")
	impostor := newMockConnection("same-id")
	registry.Add(registered)

	if err := registry.Remove(impostor); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a different connection with the same ID, got %v", err)
	}
	if !registry.Contains(registered) {
		t.Error("Registered connection should survive")
	}
}

func TestRegistry_BroadcastAll(t *testing.T) {
	registry := NewRegistry(&mockLogger{})

	conn1 := newMockConnection("conn-1")
	conn2 := newMockConnection("conn-2")
	registry.Add(conn1)
	registry.Add(conn2)

	message := NewMessageBuilder().WithType(MessageTypeContent).WithData(Payload{"hello": "world"}).Build()

	if n := registry.BroadcastAll(context.Background(), message); n != 2 {
		t.Errorf("Expected 2 deliveries, got %d", n)
	}
	if len(conn1.messages()) != 1 {
		t.Errorf("Connection1 should have received 1 message, got %d", len(conn1.messages()))
	}
	if len(conn2.messages()) != 1 {
		t.Errorf("Connection2 should have received 1 message, got %d", len(conn2.messages()))
	}
}

func TestRegistry_BroadcastAllSkipsFailingConnection(t *testing.T) {
	registry := NewRegistry(&mockLogger{})

	healthy := newMockConnection("healthy")
	broken := newMockConnection("broken")
	broken.sendErr = &TransportError{ConnID: "broken", Op: "write", Err: errBrokenPipe}
	registry.Add(broken)
	registry.Add(healthy)

	message := NewMessageBuilder().WithType(MessageTypeContent).WithData(Payload{"a": 1}).Build()

	if n := registry.BroadcastAll(context.Background(), message); n != 1 {
		t.Errorf("Expected 1 delivery, got %d", n)
	}
	if len(healthy.messages()) != 1 {
		t.Error("Healthy connection should still receive the message")
	}
}

func TestRegistry_BroadcastAllDropsInvalidMessage(t *testing.T) {
	registry := NewRegistry(&mockLogger{})
	conn := newMockConnection("conn")
	registry.Add(conn)

	bad := &Message{ID: "x", Type: "content", Data: map[string]any{"ch": make(chan int)}}
	if n := registry.BroadcastAll(context.Background(), bad); n != 0 {
		t.Errorf("Expected 0 deliveries for unserializable data, got %d", n)
	}
	if len(conn.messages()) != 0 {
		t.Error("Invalid message must not reach connections")
	}
}

func TestRegistry_JanitorEvictsClosedConnections(t *testing.T) {
	registry := NewRegistry(&mockLogger{}, WithJanitorInterval(10*time.Millisecond))
	ctx := context.Background()
	if err := registry.Start(ctx); err != nil {
		t.Fatalf("Failed to start registry: %v", err)
	}
	defer registry.Stop(ctx)

	conn := newMockConnection("stale")
	registry.Add(conn)
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for registry.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Closed connection was not evicted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	registry := NewRegistry(&mockLogger{})
	message := NewMessageBuilder().WithType(MessageTypeContent).WithData(Payload{"n": 1}).Build()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		conn := newMockConnection(fmt.Sprintf("conn-%d", i))
		go func() {
			defer wg.Done()
			registry.Add(conn)
			_ = registry.Remove(conn)
		}()
		go func() {
			defer wg.Done()
			registry.BroadcastAll(context.Background(), message)
		}()
	}
	wg.Wait()

	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d", registry.Count())
	}
}

func TestRegistry_ConnectionsByType(t *testing.T) {
	registry := NewRegistry(&mockLogger{})
	registry.Add(newMockConnection("a"))
	registry.Add(newMockConnection("b"))

	if got := len(registry.ConnectionsByType("mock")); got != 2 {
		t.Errorf("Expected 2 mock connections, got %d", got)
	}
	if got := len(registry.ConnectionsByType("websocket")); got != 0 {
		t.Errorf("Expected 0 websocket connections, got %d", got)
	}
}
