package server

import (
	"github.com/gin-gonic/gin"

	"wallet-flow/internal/handler"
)

func registerFlowRoutes(api *gin.RouterGroup, h *handler.FlowHandler) {
	txs := api.Group("/transactions")
	{
		txs.GET("", h.ListTransactions)
		txs.POST("", h.OpenTransaction)
		txs.GET("/:id", h.GetTransaction)
		txs.DELETE("/:id", h.DiscardTransaction)
		txs.POST("/:id/events", h.SendEvent)
		txs.POST("/:id/validate", h.ValidateTransaction)
		txs.POST("/:id/reset", h.ResetTransaction)
		txs.GET("/:id/audit", h.TransactionAudit)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.POST("", h.AddNotification)
		notifications.DELETE("", h.ClearNotifications)
		notifications.DELETE("/:id", h.DismissNotification)
		notifications.POST("/:id/trigger", h.TriggerNotification)
	}

	modals := api.Group("/modals")
	{
		modals.GET("", h.ListModals)
		modals.POST("", h.OpenModal)
		modals.DELETE("", h.CloseAllModals)
		modals.POST("/pop", h.CloseTopModal)
		modals.POST("/keys", h.ModalKey)
		modals.DELETE("/:id", h.CloseModal)
	}

	wizards := api.Group("/wizards")
	{
		wizards.GET("/templates", h.ListTemplates)
		wizards.POST("", h.OpenWizard)
		wizards.GET("/:id", h.GetWizard)
		wizards.DELETE("/:id", h.DiscardWizard)
		wizards.POST("/:id/next", h.NextStep)
		wizards.POST("/:id/previous", h.PreviousStep)
		wizards.POST("/:id/goto", h.GoToStep)
		wizards.POST("/:id/reset", h.ResetWizard)
		wizards.POST("/:id/submit", h.SubmitWizard)
		wizards.PATCH("/:id/steps/:step", h.UpdateStepData)
	}
}
