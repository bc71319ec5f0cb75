package usecase

import "context"

// MetricsSummary represents aggregated analysis insights.
type MetricsSummary struct {
	TotalAnalyses    int64   `json:"total_analyses"`
	PalmCount        int64   `json:"palm_count"`
	PalmRate         float64 `json:"palm_rate"`
	FailedCount      int64   `json:"failed_count"`
	AverageSkinRatio float64 `json:"average_skin_ratio"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
}

// GetMetricsSummary aggregates analysis metrics from persisted logs.
func (uc *AnalysisUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if uc.repo == nil {
		return nil, ErrPersistenceDisabled
	}

	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalAnalyses:    aggregation.TotalCount,
		PalmCount:        aggregation.PalmCount,
		FailedCount:      aggregation.FailedCount,
		AverageSkinRatio: aggregation.AverageSkinRatio,
		AverageLatencyMs: aggregation.AverageLatencyMs,
	}
	if aggregation.TotalCount > 0 {
		summary.PalmRate = float64(aggregation.PalmCount) / float64(aggregation.TotalCount)
	}
	return summary, nil
}
