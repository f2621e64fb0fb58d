package inspect

import (
	"sync"

	"github.com/nullcoward/holonic-engine/pkg/heartbeat"
)

// feed fans completed heartbeat records out to websocket subscribers,
// keyed by the agent ID each record concerns. A slow or gone subscriber
// never blocks publishing: its channel is buffered and a full buffer just
// drops the newest frame rather than stalling the scheduler tick.
type feed struct {
	mu   sync.Mutex
	subs map[string][]chan heartbeat.Record
}

func newFeed() *feed {
	return &feed{subs: make(map[string][]chan heartbeat.Record)}
}

func (f *feed) subscribe(agentID string) chan heartbeat.Record {
	ch := make(chan heartbeat.Record, 16)
	f.mu.Lock()
	f.subs[agentID] = append(f.subs[agentID], ch)
	f.mu.Unlock()
	return ch
}

func (f *feed) unsubscribe(agentID string, ch chan heartbeat.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.subs[agentID]
	for i, c := range list {
		if c == ch {
			f.subs[agentID] = append(list[:i], list[i+1:]...)
			close(ch)
			return
		}
	}
}

// publish delivers every record in hb to subscribers of its agent.
func (f *feed) publish(hb *heartbeat.Heartbeat) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range hb.Records() {
		for _, ch := range f.subs[rec.AgentID] {
			select {
			case ch <- rec:
			default:
			}
		}
	}
}

// HandleHeartbeat fans a completed heartbeat out to subscribed websocket
// clients. Register this with the scheduler via heart.Heart.OnHeartbeat
// (composing with any other callback the caller needs).
func (s *Server) HandleHeartbeat(hb *heartbeat.Heartbeat) {
	s.feed.publish(hb)
}
