package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/aretw0/loft/pkg/core"
	"github.com/aretw0/loft/pkg/recipes"
	"github.com/aretw0/loft/pkg/tracker"
)

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.app.Tracker.Subjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subjectsOut(subjects))
}

func (s *Server) handleSubject(w http.ResponseWriter, r *http.Request) {
	details, err := s.app.Tracker.Details(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailsOut(details))
}

func (s *Server) handleLab(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	lab, ok, err := s.app.Tracker.Lab(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, fmt.Errorf("lab %s: %w", id, core.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, labOut(lab))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleLabStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.app.Tracker.UpdateStatus(r.Context(), id, tracker.Status(req.Status)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleLab(w, r)
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (s *Server) handleLabComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.app.Tracker.UpdateComment(r.Context(), id, req.Comment); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleLab(w, r)
}

func (s *Server) handleMealSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeError(w, r, fmt.Errorf("%w: missing query parameter q", core.ErrInvalidRecord))
		return
	}
	meals, err := s.app.Recipes.Search(r.Context(), query)
	if errors.Is(err, core.ErrNoResults) {
		meals, err = []recipes.Meal{}, nil
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meals)
}

func (s *Server) handleMealRandom(w http.ResponseWriter, r *http.Request) {
	meal, err := s.app.Recipes.Random(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meal)
}

func (s *Server) handleMeal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meal, err := s.app.Recipes.Lookup(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	favored, err := s.app.Recipes.IsFavored(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes.Detail{Meal: meal, Favored: favored})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	meals, err := s.app.Recipes.Favorites(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meals)
}

// handleFavor stores the meal sent in the body, or the one the remote
// origin returns for the id when the body is empty.
func (s *Server) handleFavor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var meal recipes.Meal
	if r.ContentLength > 0 {
		if err := decodeBody(w, r, &meal); err != nil {
			s.writeError(w, r, err)
			return
		}
		meal.ID = id
	} else {
		var err error
		if meal, err = s.app.Recipes.Lookup(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.app.Recipes.Favor(r.Context(), meal); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipes.Detail{Meal: meal, Favored: true})
}

func (s *Server) handleUnfavor(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Recipes.Unfavor(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	current, err := s.app.Weather.Current(r.Context(), mux.Vars(r)["city"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	forecast, err := s.app.Weather.Forecast(r.Context(), mux.Vars(r)["city"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forecast)
}
