package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/palm-check/internal/imagecodec"
	"github.com/example/palm-check/internal/logging"
	"github.com/example/palm-check/internal/palm"
	"github.com/example/palm-check/internal/repository"
)

const resultTTL = 10 * time.Minute

var (
	// ErrNotFound is returned when no analysis exists for a request ID.
	ErrNotFound = errors.New("analysis not found")
	// ErrPersistenceDisabled is returned by queries that need the database
	// when none is configured.
	ErrPersistenceDisabled = errors.New("analysis persistence is disabled")
)

// AnalysisRepository defines the persistence operations needed by the use case.
type AnalysisRepository interface {
	SaveLog(ctx context.Context, log *repository.AnalysisLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.AnalysisLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// AnalysisUseCase decodes uploads, classifies them and records the outcome.
type AnalysisUseCase struct {
	classifier     *palm.Classifier
	repo           AnalysisRepository
	cache          Cache
	logger         *zap.Logger
	now            func() time.Time
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

type cachedAnalysis struct {
	RequestID   string    `json:"request_id"`
	Filename    string    `json:"filename"`
	Format      string    `json:"format"`
	IsPalm      bool      `json:"is_palm"`
	Message     string    `json:"message"`
	SkinRatio   float64   `json:"skin_ratio"`
	SkinPixels  int64     `json:"skin_pixels"`
	TotalPixels int64     `json:"total_pixels"`
	Failed      bool      `json:"failed"`
	Hash        string    `json:"sha1_hash"`
	LatencyMs   float64   `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAnalysisUseCase constructs a use case. repo may be nil, in which case
// results live only in the cache.
func NewAnalysisUseCase(classifier *palm.Classifier, repo AnalysisRepository, cache Cache, logger *zap.Logger) *AnalysisUseCase {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &AnalysisUseCase{
		classifier:     classifier,
		repo:           repo,
		cache:          cache,
		logger:         logger.Named("analysis_usecase"),
		now:            time.Now,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Analyze classifies an uploaded image. Undecodable input is reported with
// imagecodec.ErrInvalidImage; classifier failures are folded into the result.
// Recording the outcome is best effort and never changes the verdict.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, filename string, data []byte) (string, palm.Result, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze", requestID)

	if err := ctx.Err(); err != nil {
		return requestID, palm.Failed, logging.NewOperationError("usecase.analyze", requestID, err)
	}

	started := uc.now()
	img, err := imagecodec.Decode(data)
	if err != nil {
		opLogger.Info("rejected upload", zap.String("filename", filename), zap.Int("bytes", len(data)), zap.Error(err))
		return requestID, palm.Failed, err
	}

	result, analysis, procErr := uc.classifier.Evaluate(img)
	latency := uc.now().Sub(started)

	hash := sha1.Sum(data)
	log := &repository.AnalysisLog{
		RequestID:   requestID,
		Filename:    filename,
		Format:      imagecodec.Format(data),
		IsPalm:      result.IsPalm,
		Message:     result.Message,
		SkinRatio:   analysis.Ratio,
		SkinPixels:  int64(analysis.SkinPixels),
		TotalPixels: int64(analysis.TotalPixels),
		Failed:      procErr != nil,
		SHA1Hash:    hex.EncodeToString(hash[:]),
		LatencyMs:   float64(latency.Microseconds()) / 1000,
		CreatedAt:   uc.now().UTC(),
	}
	uc.record(ctx, opLogger, log)

	opLogger.Info("analysis complete",
		zap.Bool("is_palm", result.IsPalm),
		zap.Float64("skin_ratio", analysis.Ratio),
		zap.Bool("failed", log.Failed),
		zap.Duration("latency", latency))
	return requestID, result, nil
}

func (uc *AnalysisUseCase) record(ctx context.Context, opLogger *zap.Logger, log *repository.AnalysisLog) {
	if uc.repo != nil {
		if err := uc.repo.SaveLog(ctx, log); err != nil {
			uc.logger.Warn("failed to persist analysis log", logging.ErrorFields(err)...)
		}
	}

	serialized, err := json.Marshal(toCached(log))
	if err != nil {
		opLogger.Warn("failed to serialize analysis", zap.Error(err))
		return
	}
	key := cacheKey(log.RequestID)
	if err := uc.withCacheRetry(ctx, log.RequestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, key, string(serialized), resultTTL)
	}); err != nil {
		uc.logger.Warn("failed to cache analysis", logging.ErrorFields(err)...)
	}
}

// GetResult returns a recorded analysis, from the cache when possible.
func (uc *AnalysisUseCase) GetResult(ctx context.Context, requestID string) (*repository.AnalysisLog, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_result", requestID)

	cached, err := uc.withCacheGet(ctx, requestID, "cache.get.result", cacheKey(requestID))
	switch {
	case err == nil:
		var payload cachedAnalysis
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			opLogger.Warn("failed to decode cached analysis", zap.Error(err))
		} else {
			return fromCached(payload), nil
		}
	case !errors.Is(err, redis.Nil):
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	if uc.repo == nil {
		return nil, ErrNotFound
	}
	log, err := uc.repo.FindByRequestID(ctx, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (uc *AnalysisUseCase) withCacheRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("cache operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if errors.Is(err, redis.Nil) {
			return logging.NewOperationError(operation, requestID, err)
		}
		if !repository.IsTransient(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("cache operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient cache error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *AnalysisUseCase) withCacheGet(ctx context.Context, requestID, operation, key string) (string, error) {
	var result string
	err := uc.withCacheRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, key)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func cacheKey(requestID string) string {
	return fmt.Sprintf("analysis:%s", requestID)
}

func toCached(log *repository.AnalysisLog) cachedAnalysis {
	return cachedAnalysis{
		RequestID:   log.RequestID,
		Filename:    log.Filename,
		Format:      log.Format,
		IsPalm:      log.IsPalm,
		Message:     log.Message,
		SkinRatio:   log.SkinRatio,
		SkinPixels:  log.SkinPixels,
		TotalPixels: log.TotalPixels,
		Failed:      log.Failed,
		Hash:        log.SHA1Hash,
		LatencyMs:   log.LatencyMs,
		CreatedAt:   log.CreatedAt,
	}
}

func fromCached(c cachedAnalysis) *repository.AnalysisLog {
	return &repository.AnalysisLog{
		RequestID:   c.RequestID,
		Filename:    c.Filename,
		Format:      c.Format,
		IsPalm:      c.IsPalm,
		Message:     c.Message,
		SkinRatio:   c.SkinRatio,
		SkinPixels:  c.SkinPixels,
		TotalPixels: c.TotalPixels,
		Failed:      c.Failed,
		SHA1Hash:    c.Hash,
		LatencyMs:   c.LatencyMs,
		CreatedAt:   c.CreatedAt,
	}
}
