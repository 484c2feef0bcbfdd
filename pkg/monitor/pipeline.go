package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics 定义批处理流水线的监控指标
type PipelineMetrics struct {
	TransactionsExtended *prometheus.CounterVec
	NoncesAllocated      *prometheus.CounterVec
	SignaturesAccepted   *prometheus.CounterVec
	SignaturesDropped    *prometheus.CounterVec
	TransactionsComplete *prometheus.CounterVec
	TransactionsSkipped  prometheus.Counter
	SlotsSigned          prometheus.Counter
	StageDuration        *prometheus.HistogramVec
}

// Global Metrics Instance
var (
	Pipeline *PipelineMetrics
	Registry *prometheus.Registry

	once sync.Once
)

// InitPipelineMetrics 初始化流水线指标，重复调用无副作用
func InitPipelineMetrics() {
	once.Do(func() {
		Registry = prometheus.NewRegistry()
		factory := promauto.With(Registry)
		Pipeline = &PipelineMetrics{
			TransactionsExtended: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "safe_ledger_transactions_extended_total",
				Help: "Transactions extended with a nonce and a safe tx hash",
			}, []string{"safe"}),
			NoncesAllocated: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "safe_ledger_nonces_allocated_total",
				Help: "Nonces handed out by the wallet registry",
			}, []string{"safe"}),
			SignaturesAccepted: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "safe_ledger_signatures_accepted_total",
				Help: "Owner signatures that recovered to their slot signer",
			}, []string{"type"}),
			SignaturesDropped: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "safe_ledger_signatures_dropped_total",
				Help: "Owner signatures ignored during collation",
			}, []string{"reason"}),
			TransactionsComplete: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "safe_ledger_transactions_collated_total",
				Help: "Collated transactions by completeness",
			}, []string{"complete"}),
			TransactionsSkipped: factory.NewCounter(prometheus.CounterOpts{
				Name: "safe_ledger_transactions_skipped_total",
				Help: "Incomplete transactions left out of the flat payload",
			}),
			SlotsSigned: factory.NewCounter(prometheus.CounterOpts{
				Name: "safe_ledger_slots_signed_total",
				Help: "Signature slots filled by the local signer",
			}),
			StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "safe_ledger_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: prometheus.DefBuckets,
			}, []string{"stage"}),
		}
	})
}

// 以下辅助函数在指标未初始化时直接返回，服务层和测试无需关心监控是否开启

func IncExtended(safe string) {
	if Pipeline == nil {
		return
	}
	Pipeline.TransactionsExtended.WithLabelValues(safe).Inc()
}

func IncNonceAllocated(safe string) {
	if Pipeline == nil {
		return
	}
	Pipeline.NoncesAllocated.WithLabelValues(safe).Inc()
}

func IncSignatureAccepted(sigType string) {
	if Pipeline == nil {
		return
	}
	Pipeline.SignaturesAccepted.WithLabelValues(sigType).Inc()
}

func IncSignatureDropped(reason string) {
	if Pipeline == nil {
		return
	}
	Pipeline.SignaturesDropped.WithLabelValues(reason).Inc()
}

func IncCollated(complete bool) {
	if Pipeline == nil {
		return
	}
	label := "false"
	if complete {
		label = "true"
	}
	Pipeline.TransactionsComplete.WithLabelValues(label).Inc()
}

func IncSkipped() {
	if Pipeline == nil {
		return
	}
	Pipeline.TransactionsSkipped.Inc()
}

func AddSlotsSigned(n int) {
	if Pipeline == nil {
		return
	}
	Pipeline.SlotsSigned.Add(float64(n))
}

// ObserveStage 用法: defer monitor.ObserveStage("extend", time.Now())
func ObserveStage(stage string, start time.Time) {
	if Pipeline == nil {
		return
	}
	Pipeline.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteFile dumps the metrics in the node_exporter textfile format.
func WriteFile(path string) error {
	if Registry == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}
