package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/palm-check/internal/auth"
	"github.com/example/palm-check/internal/imagecodec"
	"github.com/example/palm-check/internal/logging"
	"github.com/example/palm-check/internal/palm"
	"github.com/example/palm-check/internal/repository"
	"github.com/example/palm-check/internal/usecase"
)

// MaxUploadSize caps the request body accepted by the analysis endpoint.
const MaxUploadSize = 10 << 20

const (
	uploadField = "file"

	msgNoFile        = "No file uploaded."
	msgNoSelection   = "No selected file."
	msgInvalidImage  = "Invalid image file."
	msgTooLarge      = "File too large."
	msgAnalysisError = "An error occurred during analysis."

	requestIDHeader = "X-Request-ID"
)

// Analyzer is the slice of the analysis use case the HTTP layer needs.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, data []byte) (string, palm.Result, error)
	GetResult(ctx context.Context, requestID string) (*repository.AnalysisLog, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// Options configures the router.
type Options struct {
	// IndexFile is served at GET /.
	IndexFile string
	// Auth guards the result and metrics routes.
	Auth   gin.HandlerFunc
	Logger *zap.Logger
}

// NewRouter builds a gin engine with access logging, panic recovery and all
// routes registered.
func NewRouter(analyzer Analyzer, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	r := gin.New()
	r.MaxMultipartMemory = MaxUploadSize
	r.Use(accessLog(logger), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic while handling request", zap.Any("panic", recovered), zap.String("path", c.FullPath()))
		respond(c, http.StatusInternalServerError, msgAnalysisError)
	}))

	RegisterRoutes(r, analyzer, opts.IndexFile, opts.Auth, logger)
	return r
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, analyzer Analyzer, indexFile string, authMiddleware gin.HandlerFunc, logger *zap.Logger) {
	if authMiddleware == nil {
		authMiddleware = func(c *gin.Context) { c.Next() }
	}

	router.GET("/", func(c *gin.Context) {
		if indexFile == "" {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(indexFile)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/analyze-palm", analyzePalm(analyzer, logger))
	api.GET("/result/:id", authMiddleware, getResult(analyzer, logger))
	api.GET("/metrics", authMiddleware, getMetrics(analyzer, logger))
}

func analyzePalm(analyzer Analyzer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

		file, err := c.FormFile(uploadField)
		if err != nil {
			switch {
			case tooLarge(c.Request, err):
				respond(c, http.StatusRequestEntityTooLarge, msgTooLarge)
			case emptyFilePart(c.Request):
				respond(c, http.StatusBadRequest, msgNoSelection)
			default:
				respond(c, http.StatusBadRequest, msgNoFile)
			}
			return
		}
		if file.Filename == "" {
			respond(c, http.StatusBadRequest, msgNoSelection)
			return
		}

		src, err := file.Open()
		if err != nil {
			logger.Error("failed to open upload", zap.Error(err))
			respond(c, http.StatusInternalServerError, msgAnalysisError)
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			logger.Error("failed to read upload", zap.Error(err))
			respond(c, http.StatusInternalServerError, msgAnalysisError)
			return
		}

		requestID, result, err := analyzer.Analyze(c.Request.Context(), file.Filename, data)
		if requestID != "" {
			c.Header(requestIDHeader, requestID)
		}
		switch {
		case errors.Is(err, imagecodec.ErrInvalidImage):
			respond(c, http.StatusBadRequest, msgInvalidImage)
		case err != nil:
			logger.Error("analysis failed", zap.Error(err), zap.String("request_id", requestID))
			respond(c, http.StatusInternalServerError, msgAnalysisError)
		default:
			c.JSON(http.StatusOK, result)
		}
	}
}

func getResult(analyzer Analyzer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, _ := auth.GetUserID(c.Request.Context())
		logger.Info("result lookup", zap.String("request_id", c.Param("id")), zap.String("subject", subject))

		log, err := analyzer.GetResult(c.Request.Context(), c.Param("id"))
		switch {
		case errors.Is(err, usecase.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		case err != nil:
			logger.Error("failed to load result", logging.ErrorFields(err)...)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":   log.RequestID,
			"filename":     log.Filename,
			"format":       log.Format,
			"is_palm":      log.IsPalm,
			"message":      log.Message,
			"skin_ratio":   log.SkinRatio,
			"skin_pixels":  log.SkinPixels,
			"total_pixels": log.TotalPixels,
			"failed":       log.Failed,
			"sha1_hash":    log.SHA1Hash,
			"latency_ms":   log.LatencyMs,
			"created_at":   log.CreatedAt,
		})
	}
}

func getMetrics(analyzer Analyzer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, _ := auth.GetUserID(c.Request.Context())
		logger.Info("metrics requested", zap.String("subject", subject))

		summary, err := analyzer.GetMetricsSummary(c.Request.Context())
		switch {
		case errors.Is(err, usecase.ErrPersistenceDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case err != nil:
			logger.Error("failed to aggregate metrics", logging.ErrorFields(err)...)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
		default:
			c.JSON(http.StatusOK, summary)
		}
	}
}

func respond(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, palm.Result{IsPalm: false, Message: message})
}

func tooLarge(r *http.Request, err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || r.ContentLength > MaxUploadSize
}

// emptyFilePart reports whether the upload field arrived without a filename.
// The multipart reader files such parts under form values, not files.
func emptyFilePart(r *http.Request) bool {
	return r.MultipartForm != nil && len(r.MultipartForm.Value[uploadField]) > 0
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", c.ClientIP()))
	}
}
