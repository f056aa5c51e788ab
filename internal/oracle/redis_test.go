package oracle

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

func TestRedisChannelQueuesRequests(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ch := NewRedisChannel(client, "")
	ctx := context.Background()
	wallet := common.HexToAddress("0x2000000000000000000000000000000000000001")

	id, err := ch.Submit(ctx, Request{
		JobType:  "job-1",
		Callback: Callback{Wallet: wallet, Kind: "limit_change"},
		Payload:  map[string]string{"label": "alice", "code": "123456"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == "" {
		t.Fatal("expected request id")
	}

	pending, err := ch.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 queued request, got %d", len(pending))
	}
	got := pending[0]
	if got.ID != id || got.Callback.Wallet != wallet || got.Payload["code"] != "123456" {
		t.Fatalf("unexpected queued request: %+v", got)
	}
}

func TestMemoryChannelAssignsIDs(t *testing.T) {
	ch := NewMemoryChannel()
	first, _ := ch.Submit(context.Background(), Request{JobType: "a"})
	second, _ := ch.Submit(context.Background(), Request{JobType: "b"})
	if first == "" || first == second {
		t.Fatalf("expected distinct ids, got %q and %q", first, second)
	}
	last, ok := ch.Last()
	if !ok || last.ID != second {
		t.Fatalf("expected last request %s, got %+v", second, last)
	}
	if len(ch.Requests()) != 2 {
		t.Fatalf("expected 2 requests recorded")
	}
}
