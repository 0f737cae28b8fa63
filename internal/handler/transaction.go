package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"wallet-flow/internal/handler/request"
	"wallet-flow/internal/handler/response"
	"wallet-flow/internal/txflow"
	"wallet-flow/pkg/errno"
)

// ListTransactions 所有交易状态机快照
// @Summary List transaction flows
// @Tags Transaction
// @Produce json
// @Success 200 {object} response.Response
// @Router /transactions [get]
func (h *FlowHandler) ListTransactions(c *gin.Context) {
	response.Success(c, h.shell.Transactions())
}

// OpenTransaction 创建 (或返回已有的) 交易状态机
// @Summary Open a transaction flow
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body request.OpenTransactionRequest true "Open Request"
// @Success 200 {object} response.Response
// @Router /transactions [post]
func (h *FlowHandler) OpenTransaction(c *gin.Context) {
	var req request.OpenTransactionRequest
	if !bindJSON(c, &req) {
		return
	}

	m := h.shell.OpenTransaction(req.ID)
	if req.Draft != nil {
		if err := m.Begin(*req.Draft); err != nil {
			response.Error(c, toErrno(err))
			return
		}
	}
	response.Success(c, m.Snapshot())
}

// GetTransaction 交易状态机快照
// @Summary Get a transaction flow snapshot
// @Tags Transaction
// @Produce json
// @Param id path string true "Flow ID"
// @Success 200 {object} response.Response
// @Router /transactions/{id} [get]
func (h *FlowHandler) GetTransaction(c *gin.Context) {
	m, ok := h.shell.Transaction(c.Param("id"))
	if !ok {
		response.Error(c, errno.ErrTransactionNotFound)
		return
	}
	response.Success(c, m.Snapshot())
}

// SendEvent 投递 {type, payload} 事件
// @Summary Send an event to a transaction flow
// @Tags Transaction
// @Accept json
// @Produce json
// @Param id path string true "Flow ID"
// @Param request body request.SendEventRequest true "Event"
// @Success 200 {object} response.Response
// @Router /transactions/{id}/events [post]
func (h *FlowHandler) SendEvent(c *gin.Context) {
	m, ok := h.shell.Transaction(c.Param("id"))
	if !ok {
		response.Error(c, errno.ErrTransactionNotFound)
		return
	}

	var req request.SendEventRequest
	if !bindJSON(c, &req) {
		return
	}
	ev, err := txflow.ParseEvent(req.Type, req.Payload)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	if err := m.Send(ev); err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, m.Snapshot())
}

// ValidateTransaction 校验当前草稿并根据结果发送 VALID / INVALID
// @Summary Validate the draft of a transaction flow
// @Tags Transaction
// @Produce json
// @Param id path string true "Flow ID"
// @Success 200 {object} response.Response
// @Router /transactions/{id}/validate [post]
func (h *FlowHandler) ValidateTransaction(c *gin.Context) {
	m, ok := h.shell.Transaction(c.Param("id"))
	if !ok {
		response.Error(c, errno.ErrTransactionNotFound)
		return
	}

	if m.State() == txflow.StateInputting {
		if err := m.Send(txflow.Validate{}); err != nil {
			response.Error(c, toErrno(err))
			return
		}
	}

	var ev txflow.Event = txflow.Valid{}
	if err := m.Context().Draft().Validate(); err != nil {
		ev = txflow.Invalid{Reason: err.Error()}
	}
	if err := m.Send(ev); err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, m.Snapshot())
}

// ResetTransaction 无条件回到 idle
// @Summary Reset a transaction flow
// @Tags Transaction
// @Produce json
// @Param id path string true "Flow ID"
// @Success 200 {object} response.Response
// @Router /transactions/{id}/reset [post]
func (h *FlowHandler) ResetTransaction(c *gin.Context) {
	m, ok := h.shell.Transaction(c.Param("id"))
	if !ok {
		response.Error(c, errno.ErrTransactionNotFound)
		return
	}
	m.Reset()
	response.Success(c, m.Snapshot())
}

// DiscardTransaction 销毁状态机
// @Summary Discard a transaction flow
// @Tags Transaction
// @Param id path string true "Flow ID"
// @Success 200 {object} response.Response
// @Router /transactions/{id} [delete]
func (h *FlowHandler) DiscardTransaction(c *gin.Context) {
	if !h.shell.DiscardTransaction(c.Param("id")) {
		response.Error(c, errno.ErrTransactionNotFound)
		return
	}
	response.Success(c, nil)
}

// TransactionAudit 审计表中的转移记录
// @Summary List recorded transitions of a flow
// @Tags Transaction
// @Produce json
// @Param id path string true "Flow ID"
// @Param limit query int false "Max records"
// @Success 200 {object} response.Response
// @Router /transactions/{id}/audit [get]
func (h *FlowHandler) TransactionAudit(c *gin.Context) {
	if h.audit == nil {
		response.Error(c, errno.ErrDatabase.WithMessage("audit store is disabled"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	recs, err := h.audit.ListByFlow(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, errno.ErrDatabase)
		return
	}
	response.Success(c, recs)
}
