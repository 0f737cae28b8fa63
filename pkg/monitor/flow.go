package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FlowMetrics 流程编排层的业务指标
type FlowMetrics struct {
	TransitionsTotal      *prometheus.CounterVec
	RejectedTotal         *prometheus.CounterVec
	RetriesScheduledTotal prometheus.Counter
	RetriesExhaustedTotal prometheus.Counter
	NotificationsVisible  prometheus.Gauge
	NotificationsPending  prometheus.Gauge
	ModalDepth            prometheus.Gauge
	WizardValidations     *prometheus.CounterVec
}

// Flow 全局实例，Init 之前为 nil，下面的记录函数此时直接忽略
var Flow *FlowMetrics

// InitFlowMetrics 初始化流程指标
func InitFlowMetrics() {
	Flow = &FlowMetrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_flow_tx_transitions_total",
			Help: "Accepted transaction state transitions",
		}, []string{"from", "to", "event"}),
		RejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_flow_tx_rejected_total",
			Help: "Events rejected by the transition table",
		}, []string{"state", "event"}),
		RetriesScheduledTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wallet_flow_tx_retries_scheduled_total",
			Help: "Automatic retries scheduled after a failure",
		}),
		RetriesExhaustedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wallet_flow_tx_retries_exhausted_total",
			Help: "Failures that exceeded the retry budget",
		}),
		NotificationsVisible: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_flow_notifications_visible",
			Help: "Notifications currently visible",
		}),
		NotificationsPending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_flow_notifications_pending",
			Help: "Notifications waiting for a visible slot",
		}),
		ModalDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_flow_modal_depth",
			Help: "Number of stacked modals",
		}),
		WizardValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_flow_wizard_validations_total",
			Help: "Wizard step validations by result",
		}, []string{"step", "result"}),
	}
}

func ObserveTransition(from, to, event string) {
	if Flow == nil {
		return
	}
	Flow.TransitionsTotal.WithLabelValues(from, to, event).Inc()
}

func ObserveRejected(state, event string) {
	if Flow == nil {
		return
	}
	Flow.RejectedTotal.WithLabelValues(state, event).Inc()
}

func ObserveRetry(scheduled bool) {
	if Flow == nil {
		return
	}
	if scheduled {
		Flow.RetriesScheduledTotal.Inc()
	} else {
		Flow.RetriesExhaustedTotal.Inc()
	}
}

func ObserveNotifications(visible, pending int) {
	if Flow == nil {
		return
	}
	Flow.NotificationsVisible.Set(float64(visible))
	Flow.NotificationsPending.Set(float64(pending))
}

func ObserveModalDepth(depth int) {
	if Flow == nil {
		return
	}
	Flow.ModalDepth.Set(float64(depth))
}

func ObserveValidation(step, result string) {
	if Flow == nil {
		return
	}
	Flow.WizardValidations.WithLabelValues(step, result).Inc()
}
