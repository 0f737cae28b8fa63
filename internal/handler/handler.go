package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"wallet-flow/internal/flows"
	"wallet-flow/internal/handler/response"
	"wallet-flow/internal/service"
	"wallet-flow/internal/shell"
	"wallet-flow/internal/txflow"
	"wallet-flow/internal/wizard"
	"wallet-flow/pkg/errno"
	"wallet-flow/pkg/validator"
)

// FlowHandler 状态容器的 HTTP 投影与命令入口
type FlowHandler struct {
	shell *shell.Shell
	// audit 未启用数据库时为 nil
	audit service.TransitionStore
}

func NewFlowHandler(s *shell.Shell, audit service.TransitionStore) *FlowHandler {
	return &FlowHandler{shell: s, audit: audit}
}

// HealthCheck godoc
// @Summary Check system health
// @Description Get the current health status of the server
// @Tags system
// @Produce  json
// @Success 200 {object} response.Response
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "UP",
		"version": "1.0.0",
		"service": "flow-server",
	})
}

// bindJSON 绑定失败时直接写回 ErrBind 并返回 false
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return false
	}
	return true
}

// toErrno 把领域错误映射为错误码，保留具体原因
func toErrno(err error) error {
	var illegal *txflow.IllegalTransitionError
	switch {
	case errors.As(err, &illegal):
		return errno.ErrIllegalTransition.WithMessage(illegal.Error())
	case errors.Is(err, txflow.ErrUnknownEvent):
		return errno.ErrUnknownEvent.WithMessage(err.Error())
	case errors.Is(err, txflow.ErrClosed), errors.Is(err, shell.ErrTransactionNotFound):
		return errno.ErrTransactionNotFound
	case errors.Is(err, shell.ErrWizardNotFound):
		return errno.ErrWizardNotFound
	case errors.Is(err, wizard.ErrStepNotFound):
		return errno.ErrStepNotFound.WithMessage(err.Error())
	case errors.Is(err, wizard.ErrInvalidRunState):
		return errno.ErrBind.WithMessage(err.Error())
	case errors.Is(err, flows.ErrStepsIncomplete):
		return errno.ErrWizardIncomplete.WithMessage(err.Error())
	case errors.Is(err, flows.ErrUnknownTemplate):
		return errno.ErrUnknownTemplate.WithMessage(err.Error())
	default:
		return err
	}
}
