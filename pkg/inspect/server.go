// Package inspect implements the HTTP inspection surface: read/write
// views of a live agent tree, plus a websocket feed of completed
// heartbeats, for human or tooling consumption outside the AI loop.
package inspect

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nullcoward/holonic-engine/pkg/aitokens"
	"github.com/nullcoward/holonic-engine/pkg/holonagent"
	"github.com/nullcoward/holonic-engine/pkg/telemetry"
)

// Server exposes read/write HTTP views of every agent reachable from root,
// plus a live heartbeat feed over websocket. It holds no scheduler state:
// HandleHeartbeat must be wired into the scheduler's own callback by the
// caller (see heart.Heart.OnHeartbeat), since a Heart supports only one
// callback slot and composing multiple concerns is the caller's job.
type Server struct {
	root      *holonagent.Agent
	estimator aitokens.Estimator
	model     string
	telemetry *telemetry.Telemetry
	log       zerolog.Logger
	feed      *feed
	mux       *http.ServeMux
}

// New builds a Server rooted at root. estimator and model are used to
// compute hud_tokens on the HUD route; telem may be nil if the engine
// wasn't configured with telemetry.
func New(root *holonagent.Agent, estimator aitokens.Estimator, model string, telem *telemetry.Telemetry, log zerolog.Logger) *Server {
	s := &Server{
		root:      root,
		estimator: estimator,
		model:     model,
		telemetry: telem,
		log:       log.With().Str("component", "inspect").Logger(),
		feed:      newFeed(),
	}
	s.mux = http.NewServeMux()
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler to mount.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) lookup(id string) *holonagent.Agent {
	return s.root.FindInTree(id)
}
