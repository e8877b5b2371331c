package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"homehub/internal/domain"
	"homehub/internal/service"
)

func handleListConversations(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		summaries, err := convSvc.ListInbox(r.Context(), identity.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(summaries) == 0 {
			writeError(w, domain.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func handleGetConversation(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		id, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
		if err != nil {
			writeValidationError(w, "invalid conversation id")
			return
		}
		summary, err := convSvc.GetConversation(r.Context(), identity.UserID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

type directMessageCreateRequest struct {
	UserID int64 `json:"userId"`
}

func handleCreateDirectMessage(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		var req directMessageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid JSON body")
			return
		}

		conv, err := convSvc.CreateDirectMessage(r.Context(), identity.UserID, identity.Role, req.UserID)
		if errors.Is(err, domain.ErrConflict) {
			// The existing channel rides along so the client can open it.
			writeError(w, err, conv)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	}
}

type groupChatCreateRequest struct {
	Name    string  `json:"name"`
	UserIDs []int64 `json:"userIds"`
}

func handleCreateGroupChat(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		var req groupChatCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid JSON body")
			return
		}

		conv, err := convSvc.CreateNamedGroupChat(r.Context(), identity.UserID, identity.Role, req.Name, req.UserIDs)
		if errors.Is(err, domain.ErrConflict) {
			writeError(w, err, conv)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	}
}

type participantRequest struct {
	ConversationID int64 `json:"conversationId"`
	UserID         int64 `json:"userId"`
}

func handleAddParticipant(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		var req participantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid JSON body")
			return
		}
		if req.ConversationID <= 0 {
			writeValidationError(w, "conversationId is required")
			return
		}

		if err := convSvc.AddParticipant(r.Context(), identity.UserID, req.ConversationID, req.UserID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"conversation_id": req.ConversationID,
			"user_id":         req.UserID,
		})
	}
}

func handleRemoveParticipant(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		var req participantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid JSON body")
			return
		}
		if req.ConversationID <= 0 {
			writeValidationError(w, "conversationId is required")
			return
		}

		if err := convSvc.RemoveParticipant(r.Context(), identity.UserID, req.ConversationID, req.UserID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}
