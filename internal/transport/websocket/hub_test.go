package websocket

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestClientSendAfterClose(t *testing.T) {
	c := &Client{ID: "conn-1", Send: make(chan []byte, 1)}

	if !c.trySend([]byte("a")) {
		t.Fatal("отправка в открытое соединение не удалась")
	}

	c.closeSend()
	c.closeSend()

	if c.trySend([]byte("b")) {
		t.Error("отправка в закрытое соединение должна отбрасываться")
	}
}

func TestBroadcastSurvivesConnectionChurn(t *testing.T) {
	hub := NewChatHub(zap.NewNop(), nil)
	go hub.Run()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Heartbeat()
				}
			}
		}()
	}

	// Connections register and tear down while broadcasts are running;
	// a frame racing the teardown is dropped, never a panic.
	for i := 0; i < 200; i++ {
		c := &Client{
			ID:   fmt.Sprintf("conn-%d", i),
			Send: make(chan []byte, 4),
			Hub:  hub,
		}
		hub.register <- c
		hub.unregister <- c
	}

	close(stop)
	wg.Wait()
}
