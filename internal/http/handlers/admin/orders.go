package admin

import (
	"strings"
	"time"

	handlershared "github.com/dfinsell-next/internal/http/handlers/shared"
	"github.com/dfinsell-next/internal/http/response"
	"github.com/dfinsell-next/internal/models"
	"github.com/dfinsell-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// OrderDetail 订单详情（含对账备注）
type OrderDetail struct {
	Order *models.Order      `json:"order"`
	Notes []models.OrderNote `json:"notes"`
}

// GetOrders 获取订单列表
func (h *Handler) GetOrders(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	createdFrom, ok := parseTimeQuery(c, "created_from")
	if !ok {
		return
	}
	createdTo, ok := parseTimeQuery(c, "created_to")
	if !ok {
		return
	}
	filter := repository.OrderListFilter{
		Page:         page,
		PageSize:     pageSize,
		Status:       strings.TrimSpace(c.Query("status")),
		AccountTitle: strings.TrimSpace(c.Query("account")),
		PayID:        strings.TrimSpace(c.Query("pay_id")),
		CreatedFrom:  createdFrom,
		CreatedTo:    createdTo,
	}

	orders, total, err := h.OrderRepo.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load orders", err)
		return
	}
	response.SuccessWithPage(c, orders, handlershared.BuildPagination(page, pageSize, total))
}

// GetOrder 获取订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	order, err := h.OrderRepo.GetByID(id)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load order", err)
		return
	}
	if order == nil {
		respondError(c, response.CodeNotFound, "order not found", nil)
		return
	}
	notes, err := h.OrderRepo.ListNotes(id)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to load order notes", err)
		return
	}
	response.Success(c, OrderDetail{Order: order, Notes: notes})
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(c, response.CodeBadRequest, key+" must be RFC3339", nil)
		return nil, false
	}
	return &parsed, true
}
