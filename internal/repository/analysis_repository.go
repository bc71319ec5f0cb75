package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/palm-check/internal/logging"
)

// AnalysisLog is one persisted palm analysis.
type AnalysisLog struct {
	ID          uint      `gorm:"primaryKey"`
	RequestID   string    `gorm:"column:request_id;uniqueIndex;size:64"`
	Filename    string    `gorm:"column:filename;size:255"`
	Format      string    `gorm:"column:format;size:16"`
	IsPalm      bool      `gorm:"column:is_palm"`
	Message     string    `gorm:"column:message;size:64"`
	SkinRatio   float64   `gorm:"column:skin_ratio"`
	SkinPixels  int64     `gorm:"column:skin_pixels"`
	TotalPixels int64     `gorm:"column:total_pixels"`
	Failed      bool      `gorm:"column:failed"`
	SHA1Hash    string    `gorm:"column:sha1_hash;index;size:40"`
	LatencyMs   float64   `gorm:"column:latency_ms"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (AnalysisLog) TableName() string {
	return "analysis_logs"
}

// MetricsAggregation is the raw aggregate over all analysis logs.
type MetricsAggregation struct {
	TotalCount       int64
	PalmCount        int64
	FailedCount      int64
	AverageSkinRatio float64
	AverageLatencyMs float64
}

// AnalysisRepository persists analysis logs through gorm.
type AnalysisRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewAnalysisRepository creates a repository that retries transient database
// errors.
func NewAnalysisRepository(db *gorm.DB, logger *zap.Logger) *AnalysisRepository {
	return &AnalysisRepository{
		db:             db,
		logger:         logger.Named("analysis_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *AnalysisRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&AnalysisLog{})
	})
}

// SaveLog persists an analysis log entry.
func (r *AnalysisRepository) SaveLog(ctx context.Context, log *AnalysisLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestID loads the log for a request. gorm.ErrRecordNotFound is
// returned wrapped when there is none.
func (r *AnalysisRepository) FindByRequestID(ctx context.Context, requestID string) (*AnalysisLog, error) {
	var log AnalysisLog
	err := r.executeWithRetry(ctx, "repository.find_by_request_id", requestID, func() error {
		return r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics summarises every stored analysis.
func (r *AnalysisRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&AnalysisLog{}).
			Select(`COUNT(*) AS total_count,
				COALESCE(SUM(CASE WHEN is_palm THEN 1 ELSE 0 END), 0) AS palm_count,
				COALESCE(SUM(CASE WHEN failed THEN 1 ELSE 0 END), 0) AS failed_count,
				COALESCE(AVG(CASE WHEN NOT failed THEN skin_ratio END), 0) AS average_skin_ratio,
				COALESCE(AVG(latency_ms), 0) AS average_latency_ms`).
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *AnalysisRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	backoff := r.initialBackoff
	attempts := r.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return logging.NewOperationError(operation, requestID, err)
		}
		if !IsTransient(err) || attempt == attempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}
		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

// IsTransient reports whether err looks like a timeout or temporary network
// failure worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}
	return false
}
