package network

import "sync"

// Hub fans out Envelopes between every Loopback peer registered with it.
// It exists solely to drive the multi-node end-to-end scenarios (spec §8
// scenarios 1 and 6): no real transport implementation is in scope.
type Hub struct {
	mu    sync.Mutex
	peers []*Loopback
}

// NewHub returns an empty Hub.
func NewHub() *Hub { return &Hub{} }

// Loopback is an in-process Transport bound to one Hub. A Broadcast call
// delivers to every other peer registered on the same hub; it never
// delivers to itself, since a validator already applies its own messages
// synchronously through ConsensusState's return values.
type Loopback struct {
	hub *Hub
	ch  chan Envelope
}

// NewPeer registers a new Loopback transport on the hub.
func (h *Hub) NewPeer() *Loopback {
	l := &Loopback{hub: h, ch: make(chan Envelope, 256)}
	h.mu.Lock()
	h.peers = append(h.peers, l)
	h.mu.Unlock()
	return l
}

// Broadcast delivers env to every other peer on the hub. A peer whose
// inbound buffer is full drops the message: spec §5 "failed sends do not
// affect consensus progress."
func (l *Loopback) Broadcast(env Envelope) error {
	l.hub.mu.Lock()
	peers := make([]*Loopback, len(l.hub.peers))
	copy(peers, l.hub.peers)
	l.hub.mu.Unlock()

	for _, p := range peers {
		if p == l {
			continue
		}
		select {
		case p.ch <- env:
		default:
		}
	}
	return nil
}

// Receive returns the channel this peer's inbound messages arrive on.
func (l *Loopback) Receive() <-chan Envelope { return l.ch }
