package handler

import (
	"net/http"
	"time"

	"github.com/xenking/tailor-orders/internal/domain/access"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type meResponse struct {
	User          userResponse `json:"user"`
	Administrator bool         `json:"administrator"`
	Capabilities  []string     `json:"capabilities"`
}

func toMe(u *access.User) meResponse {
	caps := access.CapabilitiesOf(u)
	return meResponse{User: toUser(*u), Administrator: caps.Admin(), Capabilities: caps.Names()}
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	meResponse
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	s, err := h.access.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, meResponse: toMe(s.User)})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toMe(currentUser(r.Context())))
}

type userRequest struct {
	Name          string  `json:"name" validate:"required,max=255"`
	Email         string  `json:"email" validate:"required,email"`
	Password      string  `json:"password"`
	RoleIDs       []int64 `json:"role_ids" validate:"dive,gt=0"`
	PermissionIDs []int64 `json:"permission_ids" validate:"dive,gt=0"`
}

func (req userRequest) input() access.UserInput {
	return access.UserInput{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		RoleIDs:       req.RoleIDs,
		PermissionIDs: req.PermissionIDs,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.access.ListUsers(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(users, len(users), toUser))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := h.access.CreateUser(r.Context(), req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUser(*u))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	u, err := h.access.GetUser(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(*u))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req userRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	u, err := h.access.UpdateUser(r.Context(), id, req.input())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(*u))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.access.DeleteUser(r.Context(), currentUser(r.Context()).ID, id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type roleRequest struct {
	Name          string  `json:"name" validate:"required,max=100"`
	PermissionIDs []int64 `json:"permission_ids" validate:"dive,gt=0"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.access.ListRoles(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(roles, len(roles), toRole))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	role, err := h.access.CreateRole(r.Context(), access.RoleInput{Name: req.Name, PermissionIDs: req.PermissionIDs})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRole(*role))
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	role, err := h.access.GetRole(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRole(*role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req roleRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	role, err := h.access.UpdateRole(r.Context(), id, access.RoleInput{Name: req.Name, PermissionIDs: req.PermissionIDs})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRole(*role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.access.DeleteRole(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type permissionRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.access.ListPermissions(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(perms, len(perms), toPermission))
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	p, err := h.access.CreatePermission(r.Context(), req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPermission(*p))
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	p, err := h.access.GetPermission(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPermission(*p))
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req permissionRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	p, err := h.access.UpdatePermission(r.Context(), id, req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPermission(*p))
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := h.access.DeletePermission(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
