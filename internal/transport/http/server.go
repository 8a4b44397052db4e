package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bcrosbie/namecache/internal/covenant"
	"github.com/bcrosbie/namecache/internal/domain"
	"github.com/bcrosbie/namecache/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxCovenantBodyBytes = 8 << 20

func NewServer(addr string, cache *service.CacheService, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cache, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cache *service.CacheService, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(requestLogger(logger))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, cache.Health(), logger)
	})

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/namehash/{namehash}", func(w http.ResponseWriter, r *http.Request) {
			result, err := cache.ResolveOne(r.Context(), chi.URLParam(r, "namehash"))
			if err != nil {
				writeError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, result, logger)
		})

		api.Post("/covenant", func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCovenantBodyBytes))
			if err != nil {
				var maxBytes *http.MaxBytesError
				if !errors.As(err, &maxBytes) {
					err = domain.InvalidArgument("request body could not be read")
				}
				writeError(w, err, logger)
				return
			}

			if covenant.IsList(body) {
				records, err := covenant.DecodeList(body)
				if err != nil {
					writeError(w, err, logger)
					return
				}
				results, err := cache.ResolveBatch(r.Context(), records)
				if err != nil {
					writeError(w, err, logger)
					return
				}
				writeJSON(w, http.StatusOK, results, logger)
				return
			}

			if !json.Valid(body) {
				writeError(w, domain.InvalidArgument("request body must be JSON"), logger)
				return
			}
			result, err := cache.ResolveCovenant(r.Context(), covenant.DecodeRecord(body))
			if err != nil {
				writeError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, result, logger)
		})

		api.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			status, err := cache.Status(r.Context())
			if err != nil {
				writeError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, status, logger)
		})

		api.Get("/hip02/{domain}", func(w http.ResponseWriter, r *http.Request) {
			result, err := cache.ResolveAddress(r.Context(), chi.URLParam(r, "domain"))
			if err != nil {
				writeError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, result, logger)
		})
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		logger.Warn("http json encode error", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]any{"error": message}, logger)
}

func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}
	appErr, ok := domain.AsAppError(err)
	if !ok {
		return http.StatusInternalServerError, "internal server error"
	}
	switch appErr.Code {
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest, appErr.Message
	case domain.CodeNotFound:
		return http.StatusNotFound, appErr.Message
	case domain.CodeUnauthenticated:
		return http.StatusUnauthorized, appErr.Message
	case domain.CodeResolutionFailed, domain.CodeRemoteUnavailable:
		return http.StatusBadGateway, appErr.Message
	case domain.CodeStoreUnavailable:
		return http.StatusServiceUnavailable, "name store unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", requestID)

			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			logger.Info("http request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.status),
				zap.Duration("duration", time.Since(started)))
		})
	}
}
