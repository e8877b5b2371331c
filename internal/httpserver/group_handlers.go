package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"homehub/internal/domain"
	"homehub/internal/service"
)

type groupCreateRequest struct {
	Name       string  `json:"name"`
	PropertyID int64   `json:"propertyId"`
	TenantIDs  []int64 `json:"tenantIds"`
}

func handleCreateGroup(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		if identity.Role != domain.RoleLandlord {
			writeError(w, domain.ErrForbidden)
			return
		}
		var req groupCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid JSON body")
			return
		}

		group, err := groupSvc.CreateGroup(r.Context(), identity.UserID, service.GroupCreateInput{
			Name:       req.Name,
			PropertyID: req.PropertyID,
			TenantIDs:  req.TenantIDs,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, group)
	}
}

type membershipUpdateRequest struct {
	TenantIDs []int64 `json:"tenantIds"`
}

func handleUpdateMembership(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		groupID, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
		if err != nil {
			writeValidationError(w, "invalid group id")
			return
		}
		var req membershipUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid JSON body")
			return
		}

		if err := groupSvc.UpdateMembership(r.Context(), identity.UserID, groupID, req.TenantIDs); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

func handleDeleteGroup(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := CurrentIdentity(r)
		if identity == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		groupID, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
		if err != nil {
			writeValidationError(w, "invalid group id")
			return
		}

		if err := groupSvc.DeleteGroup(r.Context(), identity.UserID, groupID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}
