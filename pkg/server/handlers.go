package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/nstogner/nevernood/pkg/domain"
	"github.com/nstogner/nevernood/pkg/store"
	"github.com/nstogner/nevernood/pkg/uistream"
)

const maxChatBytes = 8 << 20

// Fixed client-facing chat error bodies.
var (
	errInvalidChat = map[string]string{"error": "Invalid chat request"}
	errFailedChat  = map[string]string{"error": "Failed to process chat request"}
)

// --- Chat ---

type chatRequest struct {
	Messages *[]domain.UIMessage `json:"messages"`
}

// decodeChatRequest parses and validates a chat body.
func decodeChatRequest(r io.Reader) ([]domain.UIMessage, error) {
	var req chatRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding chat request: %w", err)
	}
	if req.Messages == nil || len(*req.Messages) == 0 {
		return nil, errors.New("messages must be a non-empty array")
	}
	for i, m := range *req.Messages {
		if !m.Role.Valid() {
			return nil, fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
		if len(m.Parts) == 0 {
			return nil, fmt.Errorf("message %d: no parts", i)
		}
		for j, p := range m.Parts {
			if p.Type == "" {
				return nil, fmt.Errorf("message %d part %d: missing type", i, j)
			}
		}
	}
	return *req.Messages, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	history, err := decodeChatRequest(http.MaxBytesReader(w, r.Body, maxChatBytes))
	if err != nil {
		slog.Warn("Rejected chat request", "error", err)
		s.jsonResponse(w, http.StatusBadRequest, errInvalidChat)
		return
	}

	turn, err := s.chat.Start(r.Context(), history)
	if err != nil {
		slog.Error("Chat request failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, errFailedChat)
		return
	}
	defer turn.Close()

	if err := turn.Run(r.Context(), uistream.NewWriter(w)); err != nil {
		slog.Warn("Chat stream ended with error", "steps", turn.Steps(), "error", err)
		return
	}
	slog.Debug("Chat turn complete", "steps", turn.Steps())
}

// --- Wardrobe ---

func (s *Server) handleListWardrobe(w http.ResponseWriter, r *http.Request) {
	items, err := s.wardrobe.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, items)
}

func (s *Server) handleCreateWardrobeItem(w http.ResponseWriter, r *http.Request) {
	var item domain.WardrobeItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		s.errorResponse(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if err := s.wardrobe.Create(r.Context(), &item); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, item)
}

func (s *Server) handleGetWardrobeItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.wardrobe.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, storeStatus(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, item)
}

func (s *Server) handleDeleteWardrobeItem(w http.ResponseWriter, r *http.Request) {
	if err := s.wardrobe.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.errorResponse(w, storeStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func storeStatus(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// --- Models ---

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.provider.List(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, models)
}

// --- Ops ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
