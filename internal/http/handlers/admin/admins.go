package admin

import (
	"errors"

	"github.com/dfinsell-next/internal/authz"
	"github.com/dfinsell-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// SetAdminRolesRequest 设置管理员角色请求
type SetAdminRolesRequest struct {
	Roles []string `json:"roles"`
}

// RoleView 角色及其直接策略
type RoleView struct {
	Role     string         `json:"role"`
	Policies []authz.Policy `json:"policies"`
}

// GetRoles 列出可分配角色
func (h *Handler) GetRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load roles", err)
		return
	}
	views := make([]RoleView, 0, len(roles))
	for _, role := range roles {
		policies, err := h.AuthzService.RolePolicies(role)
		if err != nil {
			respondError(c, response.CodeInternal, "failed to load role policies", err)
			return
		}
		views = append(views, RoleView{Role: role, Policies: policies})
	}
	response.Success(c, views)
}

// GetAdminRoles 查询管理员角色
func (h *Handler) GetAdminRoles(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.AdminRoles(id)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load admin roles", err)
		return
	}
	response.Success(c, gin.H{"admin_id": id, "roles": roles})
}

// SetAdminRoles 覆盖设置管理员角色，只允许分配已存在的角色
func (h *Handler) SetAdminRoles(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req SetAdminRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request", err)
		return
	}

	admin, err := h.AdminRepo.GetByID(id)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load admin", err)
		return
	}
	if admin == nil {
		respondError(c, response.CodeNotFound, "admin not found", nil)
		return
	}

	roles, err := h.AuthzService.AssignRoles(id, req.Roles)
	if err != nil {
		if errors.Is(err, authz.ErrUnknownRole) || errors.Is(err, authz.ErrRoleRequired) {
			respondError(c, response.CodeBadRequest, err.Error(), nil)
			return
		}
		respondError(c, response.CodeInternal, "failed to update admin roles", err)
		return
	}
	requestLog(c).Infow("admin_roles_updated", "target_admin_id", id, "roles", roles)
	response.Success(c, gin.H{"admin_id": id, "roles": roles})
}
