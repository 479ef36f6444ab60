package relay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"sharedscriptures/api/internal/highlight"
)

func TestBridgeCrossesInstances(t *testing.T) {
	s := miniredis.RunT(t)

	bridgeA, err := NewBridge("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("bridge A failed: %v", err)
	}
	defer bridgeA.Close()
	bridgeB, err := NewBridge("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("bridge B failed: %v", err)
	}
	defer bridgeB.Close()

	hubA := NewHub(bridgeA)
	hubB := NewHub(bridgeB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridgeA.Run(ctx, hubA)
	go bridgeB.Run(ctx, hubB)

	urlA := startHub(t, hubA)
	urlB := startHub(t, hubB)

	sender, _ := dialClient(t, urlA, "u1")
	_, recv := dialClient(t, urlB, "u1")
	time.Sleep(100 * time.Millisecond)

	h := highlight.Highlight{VerseID: "v1", StartIndex: 0, EndIndex: 7, Color: "#FFEB3B", UserID: "u1"}
	if err := sender.Send(h); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case got := <-recv:
		if got.VerseID != h.VerseID || got.StartIndex != h.StartIndex {
			t.Errorf("wrong highlight crossed the bridge: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("highlight never crossed the bridge")
	}
}
