package handler

import (
	"github.com/gin-gonic/gin"

	"wallet-flow/internal/handler/request"
	"wallet-flow/internal/handler/response"
	"wallet-flow/internal/modal"
	"wallet-flow/pkg/errno"
)

// ListModals 自底向上的弹窗栈
// @Summary List the modal stack
// @Tags Modal
// @Produce json
// @Success 200 {object} response.Response
// @Router /modals [get]
func (h *FlowHandler) ListModals(c *gin.Context) {
	response.Success(c, h.shell.Modals.Items())
}

// OpenModal 打开弹窗
// @Summary Open a modal
// @Tags Modal
// @Accept json
// @Produce json
// @Param request body request.OpenModalRequest true "Modal"
// @Success 200 {object} response.Response
// @Router /modals [post]
func (h *FlowHandler) OpenModal(c *gin.Context) {
	var req request.OpenModalRequest
	if !bindJSON(c, &req) {
		return
	}

	var opts []modal.OpenOption
	if req.ID != "" {
		opts = append(opts, modal.WithID(req.ID))
	}
	if req.Props != nil {
		opts = append(opts, modal.WithProps(req.Props))
	}
	if req.Backdrop != nil && !*req.Backdrop {
		opts = append(opts, modal.WithoutBackdrop())
	}
	if req.CloseOnEscape != nil && !*req.CloseOnEscape {
		opts = append(opts, modal.KeepOnEscape())
	}
	if req.CloseOnBackdrop != nil && !*req.CloseOnBackdrop {
		opts = append(opts, modal.KeepOnBackdrop())
	}
	response.Success(c, h.shell.Modals.Open(req.Component, opts...))
}

// CloseModal 关闭栈中任意位置的弹窗
// @Summary Close a modal
// @Tags Modal
// @Param id path string true "Modal ID"
// @Success 200 {object} response.Response
// @Router /modals/{id} [delete]
func (h *FlowHandler) CloseModal(c *gin.Context) {
	if !h.shell.Modals.Close(c.Param("id")) {
		response.Error(c, errno.ErrModalNotFound)
		return
	}
	response.Success(c, h.shell.Modals.Items())
}

// CloseTopModal 关闭栈顶弹窗
// @Summary Close the top modal
// @Tags Modal
// @Success 200 {object} response.Response
// @Router /modals/pop [post]
func (h *FlowHandler) CloseTopModal(c *gin.Context) {
	m, ok := h.shell.Modals.CloseTop()
	if !ok {
		response.Error(c, errno.ErrModalNotFound)
		return
	}
	response.Success(c, m)
}

// CloseAllModals 清空弹窗栈
// @Summary Close all modals
// @Tags Modal
// @Success 200 {object} response.Response
// @Router /modals [delete]
func (h *FlowHandler) CloseAllModals(c *gin.Context) {
	h.shell.Modals.CloseAll()
	response.Success(c, nil)
}

// ModalKey 文档级键盘事件，只有 Escape 会关闭栈顶
// @Summary Dispatch a key press to the modal stack
// @Tags Modal
// @Accept json
// @Produce json
// @Param request body request.KeyRequest true "Key"
// @Success 200 {object} response.Response
// @Router /modals/keys [post]
func (h *FlowHandler) ModalKey(c *gin.Context) {
	var req request.KeyRequest
	if !bindJSON(c, &req) {
		return
	}
	closed := h.shell.Modals.HandleKey(req.Key)
	response.Success(c, gin.H{"closed": closed, "stack": h.shell.Modals.Items()})
}
