package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallet-flow/internal/flows"
	"wallet-flow/internal/handler/request"
	"wallet-flow/internal/handler/response"
	"wallet-flow/internal/shell"
	"wallet-flow/internal/wizard"
	"wallet-flow/pkg/errno"
	"wallet-flow/pkg/logger"
)

type wizardView struct {
	ID       string          `json:"id"`
	Template string          `json:"template"`
	Steps    []stepView      `json:"steps"`
	State    wizard.RunState `json:"state"`
}

type stepView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Component string `json:"component"`
}

func viewOf(id, template string, w *wizard.Wizard) wizardView {
	steps := w.Steps()
	out := make([]stepView, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepView{ID: s.ID, Title: s.Title, Component: s.Component})
	}
	return wizardView{ID: id, Template: template, Steps: out, State: w.Snapshot()}
}

// lookupWizard 先查内存，再尝试从草稿存储恢复
func (h *FlowHandler) lookupWizard(c *gin.Context) (string, string, *wizard.Wizard, bool) {
	id := c.Param("id")
	if w, template, ok := h.shell.Wizard(id); ok {
		return id, template, w, true
	}
	w, template, err := h.shell.RestoreDraft(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, shell.ErrDraftStoreDisabled) && !errors.Is(err, shell.ErrWizardNotFound) {
			logger.Warn("恢复向导草稿失败", zap.String("wizard", id), zap.Error(err))
		}
		response.Error(c, errno.ErrWizardNotFound)
		return "", "", nil, false
	}
	return id, template, w, true
}

// persist 变更后写回草稿，未配置草稿存储时忽略
func (h *FlowHandler) persist(c *gin.Context, id string) {
	err := h.shell.SaveDraft(c.Request.Context(), id)
	if err != nil && !errors.Is(err, shell.ErrDraftStoreDisabled) {
		logger.Warn("保存向导草稿失败", zap.String("wizard", id), zap.Error(err))
	}
}

// ListTemplates 可用的向导模板
// @Summary List wizard templates
// @Tags Wizard
// @Produce json
// @Success 200 {object} response.Response
// @Router /wizards/templates [get]
func (h *FlowHandler) ListTemplates(c *gin.Context) {
	response.Success(c, gin.H{"templates": flows.Templates(), "open": h.shell.WizardIDs()})
}

// OpenWizard 按模板创建向导
// @Summary Open a wizard
// @Tags Wizard
// @Accept json
// @Produce json
// @Param request body request.OpenWizardRequest true "Wizard"
// @Success 200 {object} response.Response
// @Router /wizards [post]
func (h *FlowHandler) OpenWizard(c *gin.Context) {
	var req request.OpenWizardRequest
	if !bindJSON(c, &req) {
		return
	}

	w, err := h.shell.OpenWizard(req.ID, req.Template)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	id := req.ID
	if id == "" {
		// 生成的 ID 只记录在 shell 中
		id = w.Name()
	}
	_, template, _ := h.shell.Wizard(id)
	h.persist(c, id)
	response.Success(c, viewOf(id, template, w))
}

// GetWizard 向导状态
// @Summary Get a wizard
// @Tags Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Response
// @Router /wizards/{id} [get]
func (h *FlowHandler) GetWizard(c *gin.Context) {
	id, template, w, ok := h.lookupWizard(c)
	if !ok {
		return
	}
	response.Success(c, viewOf(id, template, w))
}

// NextStep 校验当前步骤并前进，校验失败时停留在原步骤
// @Summary Advance a wizard
// @Tags Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Response
// @Router /wizards/{id}/next [post]
func (h *FlowHandler) NextStep(c *gin.Context) {
	id, template, w, ok := h.lookupWizard(c)
	if !ok {
		return
	}
	advanced := w.Next(c.Request.Context())
	h.persist(c, id)
	response.Success(c, gin.H{"advanced": advanced, "wizard": viewOf(id, template, w)})
}

// PreviousStep 后退一步，不做校验
// @Summary Go back one wizard step
// @Tags Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Response
// @Router /wizards/{id}/previous [post]
func (h *FlowHandler) PreviousStep(c *gin.Context) {
	id, template, w, ok := h.lookupWizard(c)
	if !ok {
		return
	}
	moved := w.Previous()
	h.persist(c, id)
	response.Success(c, gin.H{"moved": moved, "wizard": viewOf(id, template, w)})
}

// GoToStep 跳转到任意步骤，不做校验
// @Summary Jump to a wizard step
// @Tags Wizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param request body request.GoToRequest true "Target step"
// @Success 200 {object} response.Response
// @Router /wizards/{id}/goto [post]
func (h *FlowHandler) GoToStep(c *gin.Context) {
	id, template, w, ok := h.lookupWizard(c)
	if !ok {
		return
	}
	var req request.GoToRequest
	if !bindJSON(c, &req) {
		return
	}
	if !w.GoTo(req.StepID) {
		response.Error(c, errno.ErrStepNotFound)
		return
	}
	h.persist(c, id)
	response.Success(c, viewOf(id, template, w))
}

// UpdateStepData 浅合并步骤数据
// @Summary Merge data into a wizard step
// @Tags Wizard
// @Accept json
// @Produce json
// @Param id path string true "Wizard ID"
// @Param step path string true "Step ID"
// @Param request body request.StepDataRequest true "Step data"
// @Success 200 {object} response.Response
// @Router /wizards/{id}/steps/{step} [patch]
func (h *FlowHandler) UpdateStepData(c *gin.Context) {
	id, template, w, ok := h.lookupWizard(c)
	if !ok {
		return
	}
	var req request.StepDataRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := w.UpdateStepData(c.Param("step"), req.Data); err != nil {
		response.Error(c, toErrno(err))
		return
	}
	h.persist(c, id)
	response.Success(c, viewOf(id, template, w))
}

// ResetWizard 回到第一步并清空数据
// @Summary Reset a wizard
// @Tags Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Response
// @Router /wizards/{id}/reset [post]
func (h *FlowHandler) ResetWizard(c *gin.Context) {
	id, template, w, ok := h.lookupWizard(c)
	if !ok {
		return
	}
	w.Reset()
	h.persist(c, id)
	response.Success(c, viewOf(id, template, w))
}

// SubmitWizard 把发送向导的数据转换成草稿并启动交易状态机
// @Summary Submit a send wizard as a transaction
// @Tags Wizard
// @Produce json
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Response
// @Router /wizards/{id}/submit [post]
func (h *FlowHandler) SubmitWizard(c *gin.Context) {
	id, template, w, ok := h.lookupWizard(c)
	if !ok {
		return
	}
	if template != flows.TemplateSend {
		response.Error(c, errno.ErrUnknownTemplate.WithMessage("only send wizards can be submitted"))
		return
	}

	draft, err := flows.SubmitDraft(w.Snapshot())
	if err != nil {
		if errors.Is(err, flows.ErrStepsIncomplete) {
			response.Error(c, toErrno(err))
			return
		}
		response.Error(c, errno.ErrBind.WithMessage(err.Error()))
		return
	}
	m := h.shell.OpenTransaction(id)
	if err := m.Begin(draft); err != nil {
		response.Error(c, toErrno(err))
		return
	}
	h.shell.DiscardWizard(c.Request.Context(), id)
	response.Success(c, m.Snapshot())
}

// DiscardWizard 销毁向导及其草稿
// @Summary Discard a wizard
// @Tags Wizard
// @Param id path string true "Wizard ID"
// @Success 200 {object} response.Response
// @Router /wizards/{id} [delete]
func (h *FlowHandler) DiscardWizard(c *gin.Context) {
	if !h.shell.DiscardWizard(c.Request.Context(), c.Param("id")) {
		response.Error(c, errno.ErrWizardNotFound)
		return
	}
	response.Success(c, nil)
}
