package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aretw0/loft/pkg/projector"
	"github.com/aretw0/loft/pkg/recipes"
	"github.com/aretw0/loft/pkg/tracker"
)

// sseWriteTimeout is the maximum time allowed for a single SSE write.
// Must be <= shutdownTimeout.
const sseWriteTimeout = 5 * time.Second

// liveView is a projector streamed to one client.
type liveView struct {
	state func() any
}

type stateJSON struct {
	Status     projector.Status `json:"status"`
	Data       any              `json:"data"`
	Error      string           `json:"error,omitempty"`
	Generation uint64           `json:"generation"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (s *Server) handleSubjectsEvents(w http.ResponseWriter, r *http.Request) {
	view := s.app.Tracker.SubjectsView(s.app.ViewOptions("subjects")...)
	stream(s, w, r, view, tracker.SubjectsTable+"/*", func(v []tracker.Subject) any { return subjectsOut(v) })
}

func (s *Server) handleSubjectEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view := s.app.Tracker.DetailsView(id, s.app.ViewOptions("subject-"+id)...)
	pattern := "{" + tracker.SubjectsTable + "/" + id + "," + tracker.LabsPattern(id) + "}"
	stream(s, w, r, view, pattern, func(v tracker.Details) any { return detailsOut(v) })
}

func (s *Server) handleFavoritesEvents(w http.ResponseWriter, r *http.Request) {
	view := s.app.Recipes.FavoritesView(s.app.ViewOptions("favorites")...)
	stream(s, w, r, view, recipes.FavoritesTable+"/*", func(v []recipes.Meal) any { return v })
}

func (s *Server) handleMealEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view := s.app.Recipes.DetailView(id, s.app.ViewOptions("meal-"+id)...)
	stream(s, w, r, view, recipes.FavoritesTable+"/"+id, func(v recipes.Detail) any { return v })
}

// stream follows pattern on the App's service with p and writes every state
// transition as an SSE message until the client leaves or the server stops.
func stream[T any](s *Server, w http.ResponseWriter, r *http.Request, p *projector.Projector[T], pattern string, render func(T) any) {
	defer p.Close()

	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	if err := p.Follow(ctx, s.app.Service, pattern); err != nil {
		s.writeError(w, r, err)
		return
	}

	lv := &liveView{state: p.State}
	s.mu.Lock()
	s.views[lv] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.views, lv)
		s.mu.Unlock()
	}()

	rc := http.NewResponseController(w)
	deadlinesSupported := true
	writeAndFlush := func(gen uint64, data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", gen, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := p.Subscribe()
	defer p.Unsubscribe(ch)
	p.Initialize(ctx)

	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(stateJSON{
				Status:     st.Status,
				Data:       render(st.Data),
				Error:      st.Error(),
				Generation: st.Generation,
				UpdatedAt:  st.UpdatedAt,
			})
			if err != nil {
				s.logger.Error("failed to encode view state", "view", p.Name(), "error", err)
				continue
			}
			if err := writeAndFlush(st.Generation, data); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
