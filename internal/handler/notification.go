package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"wallet-flow/internal/handler/request"
	"wallet-flow/internal/handler/response"
	"wallet-flow/internal/notify"
	"wallet-flow/pkg/errno"
)

// ListNotifications 可见与排队中的通知
// @Summary List notifications
// @Tags Notification
// @Produce json
// @Success 200 {object} response.Response
// @Router /notifications [get]
func (h *FlowHandler) ListNotifications(c *gin.Context) {
	q := h.shell.Notifications
	response.Success(c, gin.H{
		"visible": q.Visible(),
		"pending": q.Pending(),
	})
}

// AddNotification 入队一条通知
// @Summary Add a notification
// @Tags Notification
// @Accept json
// @Produce json
// @Param request body request.AddNotificationRequest true "Notification"
// @Success 200 {object} response.Response
// @Router /notifications [post]
func (h *FlowHandler) AddNotification(c *gin.Context) {
	var req request.AddNotificationRequest
	if !bindJSON(c, &req) {
		return
	}

	r := notify.Request{Message: req.Message}
	if req.Priority != "" {
		p, err := notify.ParsePriority(req.Priority)
		if err != nil {
			response.Error(c, errno.ErrNotificationInvalid.WithMessage(err.Error()))
			return
		}
		r.Priority = p
	}
	switch {
	case req.DurationMs < 0:
		r.Duration = notify.Forever
	case req.DurationMs > 0:
		r.Duration = time.Duration(req.DurationMs) * time.Millisecond
	}

	ids := h.shell.Notifications.Add(r)
	response.Success(c, gin.H{"id": ids[0]})
}

// DismissNotification 移除通知，不存在时同样成功
// @Summary Dismiss a notification
// @Tags Notification
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Response
// @Router /notifications/{id} [delete]
func (h *FlowHandler) DismissNotification(c *gin.Context) {
	removed := h.shell.Notifications.Remove(c.Param("id"))
	response.Success(c, gin.H{"removed": removed})
}

// TriggerNotification 执行通知上的操作按钮
// @Summary Trigger a notification action
// @Tags Notification
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Response
// @Router /notifications/{id}/trigger [post]
func (h *FlowHandler) TriggerNotification(c *gin.Context) {
	if !h.shell.Notifications.Trigger(c.Param("id")) {
		response.Error(c, errno.ErrNotificationInvalid.WithMessage("notification has no action"))
		return
	}
	response.Success(c, nil)
}

// ClearNotifications 清空全部通知
// @Summary Clear all notifications
// @Tags Notification
// @Success 200 {object} response.Response
// @Router /notifications [delete]
func (h *FlowHandler) ClearNotifications(c *gin.Context) {
	h.shell.Notifications.Clear()
	response.Success(c, nil)
}
