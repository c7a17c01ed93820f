package api

import (
	"net/http"
	"strings"

	"github.com/vendhub/vendhub/pkg/httputil"
	"github.com/vendhub/vendhub/pkg/middleware"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "tenantID")
	if !ok {
		return
	}

	members, err := s.members.ListMembers(r.Context(), tenantID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list members")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"members": members,
	})
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "tenantID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	member, err := s.members.GetMember(r.Context(), tenantID, userID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		s.logger.WithError(err).Error("failed to get member")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, member)
}

type addMemberRequest struct {
	UserID int64 `json:"user_id"`
	RoleID int64 `json:"role_id"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "tenantID")
	if !ok {
		return
	}

	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonZero(w, req.UserID, "user_id") {
		return
	}
	if !httputil.RequireNonZero(w, req.RoleID, "role_id") {
		return
	}

	actor := middleware.AuthzContext(r).UserID
	if err := s.members.AddMember(r.Context(), tenantID, req.UserID, req.RoleID, &actor); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			httputil.WriteConflict(w, "member already exists")
			return
		}
		s.logger.WithError(err).Error("failed to add member")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, map[string]string{"status": "created"})
}

type updateRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

func (s *Server) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "tenantID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonZero(w, req.RoleID, "role_id") {
		return
	}

	actor := middleware.AuthzContext(r).UserID
	if err := s.members.UpdateMemberRole(r.Context(), tenantID, userID, req.RoleID, &actor); err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		s.logger.WithError(err).Error("failed to update member role")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"status": "updated"})
}

func (s *Server) handleDeactivateMember(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "tenantID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	actor := middleware.AuthzContext(r).UserID
	if err := s.members.DeactivateMember(r.Context(), tenantID, userID, &actor); err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		s.logger.WithError(err).Error("failed to deactivate member")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"status": "deactivated"})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "tenantID")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	actor := middleware.AuthzContext(r).UserID
	if err := s.members.RemoveMember(r.Context(), tenantID, userID, &actor); err != nil {
		if strings.Contains(err.Error(), "not found") {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		s.logger.WithError(err).Error("failed to remove member")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
