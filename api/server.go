// Package api 提供推荐与追踪的 HTTP 接口。
//
//	GET  /v1/recommendations?subject_type=USER&subject_id=u1&strategy=HYBRID&limit=10
//	POST /v1/feedback/click     {"user_id":"u1","product_id":"p1","algorithm":"hybrid"}
//	POST /v1/feedback/purchase
//	GET  /healthz
//	GET  /metrics
package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feedback"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pkg/logging"
)

// RequestIDHeader 是请求 ID 头。
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes 是追踪请求体上限。
const maxBodyBytes = 64 << 10

// Recommender 是 resolver.Resolver 中用到的部分。
type Recommender interface {
	Resolve(ctx context.Context, req *core.RecommendationRequest) (*core.RecommendationResult, error)
}

// Options 是路由参数。
type Options struct {
	// RateLimit 每个 IP 每分钟允许的请求数，0 表示不限流
	RateLimit int
}

type server struct {
	recommender Recommender
	collector   feedback.Collector
}

// NewRouter 构建 HTTP 路由。collector 为 nil 时使用 NopCollector。
func NewRouter(rec Recommender, collector feedback.Collector, opts Options) http.Handler {
	if collector == nil {
		collector = feedback.NopCollector{}
	}
	s := &server{recommender: rec, collector: collector}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(accessLog)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.Limit(
				opts.RateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
				}),
			))
		}
		r.Get("/recommendations", s.recommendations)
		r.Post("/feedback/{event}", s.feedback)
	})
	return r
}

// requestID 透传或生成请求 ID，并写入日志上下文。
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = logging.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		logging.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) recommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &core.RecommendationRequest{
		SubjectType:    core.SubjectType(q.Get("subject_type")),
		SubjectID:      q.Get("subject_id"),
		Strategy:       core.Strategy(q.Get("strategy")),
		CategoryFilter: q["category"],
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "limit must be an integer")
			return
		}
		req.Limit = n
	}
	if v := q.Get("include_interacted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "include_interacted must be a boolean")
			return
		}
		req.IncludeAlreadyInteracted = b
	}

	result, err := s.recommender.Resolve(r.Context(), req)
	if err != nil {
		if core.IsInvalidInput(err) {
			respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, err.Error())
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("resolve failed")
		respondError(w, http.StatusInternalServerError, core.ErrorCodeInternalError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type feedbackRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	ProductID string `json:"product_id" validate:"required"`
	Algorithm string `json:"algorithm"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

func (s *server) feedback(w http.ResponseWriter, r *http.Request) {
	event := feedback.EventType(chi.URLParam(r, "event"))
	if event != feedback.EventClick && event != feedback.EventPurchase {
		respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "unknown feedback event "+string(event))
		return
	}

	var body feedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "malformed request body")
		return
	}
	if err := getValidator().Struct(&body); err != nil {
		respondError(w, http.StatusBadRequest, core.ErrorCodeInvalidInput, "user_id and product_id are required")
		return
	}

	// 追踪不阻塞也不影响响应，Collector 自行吞掉错误
	if event == feedback.EventClick {
		s.collector.RecordClick(r.Context(), body.UserID, body.ProductID, body.Algorithm)
	} else {
		s.collector.RecordPurchase(r.Context(), body.UserID, body.ProductID, body.Algorithm)
	}
	w.WriteHeader(http.StatusAccepted)
}

// errorBody 是错误响应。
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Code: code, Message: message})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("marshal response failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("write response failed")
	}
}
