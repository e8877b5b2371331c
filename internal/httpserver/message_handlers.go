package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"homehub/internal/domain"
	"homehub/internal/service"
)

type messageSendRequest struct {
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
}

func handleSendMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		var req messageSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid JSON body")
			return
		}
		if req.ConversationID <= 0 {
			writeValidationError(w, "conversationId is required")
			return
		}

		msg, err := msgSvc.Send(r.Context(), identity.UserID, req.ConversationID, req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, service.ToMessageResponse(msg))
	}
}

func handleListMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		convID, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
		if err != nil {
			writeValidationError(w, "invalid conversation id")
			return
		}

		order := domain.OrderAscending
		switch r.URL.Query().Get("order") {
		case "", "asc":
		case "desc":
			order = domain.OrderDescending
		default:
			writeValidationError(w, "order must be asc or desc")
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, err = strconv.Atoi(v)
			if err != nil || limit < 0 {
				writeValidationError(w, "limit must be a non-negative integer")
				return
			}
		}

		msgs, err := msgSvc.List(r.Context(), identity.UserID, convID, order, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, service.ToMessageResponses(msgs))
	}
}

type markReadRequest struct {
	MessageID int64 `json:"messageId"`
}

func handleMarkRead(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		var req markReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid JSON body")
			return
		}
		if req.MessageID <= 0 {
			writeValidationError(w, "messageId is required")
			return
		}

		msg, err := msgSvc.MarkRead(r.Context(), identity.UserID, req.MessageID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, service.ToMessageResponse(msg))
	}
}
