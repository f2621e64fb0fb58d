package inspect

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/coder/websocket"

	"github.com/nullcoward/holonic-engine/pkg/holonhud"
)

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/holon/{id}", s.handleGetHolon)
	s.mux.HandleFunc("GET /api/holon/{id}/hud", s.handleGetHUD)
	s.mux.HandleFunc("GET /api/holon/{id}/purpose", s.handleGetPurpose)
	s.mux.HandleFunc("PUT /api/holon/{id}/purpose", s.handlePutPurpose)
	s.mux.HandleFunc("GET /api/holon/{id}/self", s.handleGetSelf)
	s.mux.HandleFunc("PUT /api/holon/{id}/self", s.handlePutSelf)
	s.mux.HandleFunc("GET /api/holon/{id}/knowledge", s.handleGetKnowledge)
	s.mux.HandleFunc("PUT /api/holon/{id}/knowledge", s.handlePutKnowledge)
	s.mux.HandleFunc("DELETE /api/holon/{id}/knowledge", s.handleDeleteKnowledge)
	s.mux.HandleFunc("POST /api/holon/{id}/action/{name}", s.handleAction)
	s.mux.HandleFunc("GET /api/holon/{id}/messages", s.handleGetMessages)
	s.mux.HandleFunc("POST /api/holon/{id}/message", s.handlePostMessage)
	s.mux.HandleFunc("POST /api/holon/{id}/child", s.handlePostChild)
	s.mux.HandleFunc("GET /api/holon/{id}/heartbeats/stream", s.handleHeartbeatStream)
}

// pathValueBody is the PUT request shape for purpose/self/knowledge:
// an empty path replaces the whole collection.
type pathValueBody struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func decodeBody(r *http.Request, out any) bool {
	if r.Body == nil {
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return false
	}
	return true
}

func (s *Server) handleGetHolon(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}

	purpose, err := agent.ResolvedPurpose()
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	self, err := agent.ResolvedSelf()
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	knowledge, err := agent.KnowledgeGet("")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	names := agent.Actions().Names()
	sort.Strings(names)
	actions := make([]map[string]any, 0, len(names))
	for _, name := range names {
		a, ok := agent.Actions().Get(name)
		if !ok {
			continue
		}
		actions = append(actions, map[string]any{"name": a.Name, "purpose": a.Purpose})
	}

	children := make([]map[string]any, 0, len(agent.Children()))
	for _, c := range agent.Children() {
		children = append(children, map[string]any{"id": c.ID(), "token_bank": c.TokenBank()})
	}

	var parentID any
	if p := agent.Parent(); p != nil {
		parentID = p.ID()
	}
	var lastHeartbeat any
	if t := agent.LastHeartbeat(); t != nil {
		lastHeartbeat = t.Format(time.RFC3339Nano)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":              agent.ID(),
		"purpose":         purpose,
		"self_state":      self,
		"knowledge":       knowledge,
		"actions":         actions,
		"token_bank":      agent.TokenBank(),
		"heart_rate_secs": agent.HeartRateSecs(),
		"last_heartbeat":  lastHeartbeat,
		"next_heartbeat":  agent.NextHeartbeat().Format(time.RFC3339Nano),
		"children":        children,
		"parent_id":       parentID,
	})
}

func (s *Server) handleGetHUD(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	hud, err := holonhud.Build(agent, s.estimator, s.model)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hud)
}

func (s *Server) handleGetPurpose(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	purpose, err := agent.ResolvedPurpose()
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, purpose)
}

func (s *Server) handlePutPurpose(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	var body pathValueBody
	if !decodeBody(r, &body) {
		badRequest(w, "no data provided")
		return
	}
	if body.Path != "" {
		if err := agent.PurposeSet(body.Path, body.Value); err != nil {
			writeError(w, bindingErrorStatus(err), err.Error())
			return
		}
	} else if m, ok := body.Value.(map[string]any); ok {
		agent.PurposeReplace(r.Context(), m)
	}
	purpose, err := agent.ResolvedPurpose()
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "purpose": purpose})
}

func (s *Server) handleGetSelf(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	self, err := agent.ResolvedSelf()
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, self)
}

func (s *Server) handlePutSelf(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	var body pathValueBody
	if !decodeBody(r, &body) {
		badRequest(w, "no data provided")
		return
	}
	if body.Path != "" {
		if err := agent.SelfSet(body.Path, body.Value); err != nil {
			writeError(w, bindingErrorStatus(err), err.Error())
			return
		}
	} else if m, ok := body.Value.(map[string]any); ok {
		agent.SelfReplace(r.Context(), m)
	}
	self, err := agent.ResolvedSelf()
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "self_state": self})
}

func (s *Server) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	path := r.URL.Query().Get("path")
	if path != "" {
		value, err := agent.KnowledgeGet(path)
		if err != nil {
			writeError(w, bindingErrorStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"value": value})
		return
	}
	knowledge, err := agent.KnowledgeGet("")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, knowledge)
}

func (s *Server) handlePutKnowledge(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	var body pathValueBody
	if !decodeBody(r, &body) {
		badRequest(w, "no data provided")
		return
	}
	if body.Path != "" {
		if err := agent.KnowledgeSet(body.Path, body.Value); err != nil {
			writeError(w, bindingErrorStatus(err), err.Error())
			return
		}
	} else if m, ok := body.Value.(map[string]any); ok {
		agent.KnowledgeReplace(r.Context(), m)
	}
	knowledge, err := agent.KnowledgeGet("")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "knowledge": knowledge})
}

func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	var body pathValueBody
	if !decodeBody(r, &body) || body.Path == "" {
		badRequest(w, "path required for delete")
		return
	}
	if err := agent.KnowledgeDelete(body.Path); err != nil {
		writeError(w, bindingErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	name := r.PathValue("name")
	var params map[string]any
	_ = decodeBody(r, &params)
	if params == nil {
		params = map[string]any{}
	}
	result, err := agent.Dispatch(r.Context(), name, params)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	messages := agent.Messages()
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]any{
			"id":              m.ID,
			"sender_id":       m.SenderID,
			"recipient_ids":   m.RecipientIDs,
			"content":         m.Content,
			"tokens_attached": m.TokensAttached,
			"timestamp":       m.Timestamp.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type postMessageBody struct {
	RecipientIDs []string `json:"recipient_ids"`
	Content      any      `json:"content"`
	Tokens       int      `json:"tokens"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	var body postMessageBody
	if !decodeBody(r, &body) {
		badRequest(w, "no data provided")
		return
	}
	msg := agent.SendMessage(body.RecipientIDs, body.Content, body.Tokens)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": map[string]any{
			"id":            msg.ID,
			"sender_id":     msg.SenderID,
			"recipient_ids": msg.RecipientIDs,
			"content":       msg.Content,
			"timestamp":     msg.Timestamp.Format(time.RFC3339Nano),
		},
	})
}

type postChildBody struct {
	TemplateID *string `json:"template_id"`
}

func (s *Server) handlePostChild(w http.ResponseWriter, r *http.Request) {
	agent := s.lookup(r.PathValue("id"))
	if agent == nil {
		notFound(w, "holon not found")
		return
	}
	var body postChildBody
	_ = decodeBody(r, &body)
	child, err := agent.CreateChild(r.Context(), body.TemplateID)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"child":   map[string]any{"id": child.ID(), "token_bank": child.TokenBank()},
	})
}

func (s *Server) handleHeartbeatStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	agent := s.lookup(id)
	if agent == nil {
		notFound(w, "holon not found")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("holon_id", id).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	ch := s.feed.subscribe(id)
	defer s.feed.unsubscribe(id, ch)

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			frame, err := json.Marshal(map[string]any{
				"agent_id":       rec.AgentID,
				"hud_sent":       rec.HUDSnapshot,
				"scheduled_time": rec.ScheduledTime.Format(time.RFC3339Nano),
				"actions_result": rec.ActionsResult,
			})
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
	}
}
