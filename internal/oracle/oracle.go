package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Request is an outbound verification request. Exactly one callback is
// expected per request, addressed to Callback.
type Request struct {
	ID          string            `json:"id"`
	JobType     string            `json:"job_type"`
	Callback    Callback          `json:"callback"`
	Payload     map[string]string `json:"payload"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// Callback identifies the wallet and handler the outcome must be delivered to.
type Callback struct {
	Wallet common.Address `json:"wallet"`
	Kind   string         `json:"kind"`
}

// Channel submits requests to the external verifier. Submit returns the
// request identifier the eventual callback will carry.
type Channel interface {
	Submit(ctx context.Context, req Request) (string, error)
}

// MemoryChannel keeps submitted requests in memory. Used by tests and
// development runs where callbacks are posted by hand.
type MemoryChannel struct {
	mu       sync.Mutex
	requests []Request
}

// NewMemoryChannel constructs an empty in-memory channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

// Submit records the request and assigns it an identifier.
func (c *MemoryChannel) Submit(_ context.Context, req Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	c.requests = append(c.requests, req)
	return req.ID, nil
}

// Requests returns a copy of everything submitted so far.
func (c *MemoryChannel) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Last returns the most recent request, if any.
func (c *MemoryChannel) Last() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return Request{}, false
	}
	return c.requests[len(c.requests)-1], true
}
