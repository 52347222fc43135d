package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feedback"
	"github.com/rushteam/shoprec/store"
)

// fakeRecommender 记录收到的请求并返回固定结果。
type fakeRecommender struct {
	got    *core.RecommendationRequest
	result *core.RecommendationResult
	err    error
}

func (f *fakeRecommender) Resolve(_ context.Context, req *core.RecommendationRequest) (*core.RecommendationResult, error) {
	f.got = req
	return f.result, f.err
}

func TestRecommendations(t *testing.T) {
	rec := &fakeRecommender{result: &core.RecommendationResult{
		Products:   []*core.ScoredProduct{core.NewScoredProduct(core.ProductRef{ID: "p1", CategoryID: "c1"}, 2)},
		Algorithm:  core.AlgorithmHybrid,
		Confidence: 40,
		Reason:     "Blended collaborative and content-based signals",
	}}
	h := NewRouter(rec, nil, Options{})

	req := httptest.NewRequest(http.MethodGet,
		"/v1/recommendations?subject_type=USER&subject_id=u1&strategy=HYBRID&limit=5&include_interacted=true&category=c1&category=c2", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	want := &core.RecommendationRequest{
		SubjectType:              core.SubjectUser,
		SubjectID:                "u1",
		Strategy:                 core.StrategyHybrid,
		Limit:                    5,
		IncludeAlreadyInteracted: true,
		CategoryFilter:           []string{"c1", "c2"},
	}
	if !reflect.DeepEqual(rec.got, want) {
		t.Errorf("request = %+v, want %+v", rec.got, want)
	}

	var got core.RecommendationResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Algorithm != core.AlgorithmHybrid || len(got.Products) != 1 || got.Products[0].ID != "p1" {
		t.Errorf("result = %+v", got)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("响应应带有请求 ID")
	}
}

func TestRecommendations_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
		code   string
	}{
		{"limit not integer", "subject_type=USER&subject_id=u1&limit=ten", nil, http.StatusBadRequest, core.ErrorCodeInvalidInput},
		{"include_interacted not bool", "subject_type=USER&subject_id=u1&include_interacted=maybe", nil, http.StatusBadRequest, core.ErrorCodeInvalidInput},
		{"validation error", "subject_type=SHOP&subject_id=u1",
			core.NewDomainError(core.ModuleResolver, core.ErrorCodeInvalidInput, "resolver: invalid request"),
			http.StatusBadRequest, core.ErrorCodeInvalidInput},
		{"internal error", "subject_type=USER&subject_id=u1", errors.New("boom"), http.StatusInternalServerError, core.ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(&fakeRecommender{err: tt.err}, nil, Options{})
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/recommendations?"+tt.query, nil))

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.code {
				t.Errorf("code = %s, want %s", body.Code, tt.code)
			}
		})
	}
}

func TestFeedback(t *testing.T) {
	ms := store.NewMemoryStore()
	defer ms.Close()
	collector := feedback.NewStoreCollector(ms)
	h := NewRouter(&fakeRecommender{}, collector, Options{})

	post := func(path, body string) int {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
		return w.Code
	}

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"click", "/v1/feedback/click", `{"user_id":"u1","product_id":"p1","algorithm":"hybrid"}`, http.StatusAccepted},
		{"purchase", "/v1/feedback/purchase", `{"user_id":"u1","product_id":"p1","algorithm":"hybrid"}`, http.StatusAccepted},
		{"unknown event", "/v1/feedback/share", `{"user_id":"u1","product_id":"p1"}`, http.StatusBadRequest},
		{"malformed body", "/v1/feedback/click", `{"user_id":`, http.StatusBadRequest},
		{"missing product", "/v1/feedback/click", `{"user_id":"u1"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := post(tt.path, tt.body); got != tt.status {
				t.Errorf("status = %d, want %d", got, tt.status)
			}
		})
	}

	counts, err := collector.Counts(context.Background(), core.AlgorithmHybrid)
	if err != nil {
		t.Fatal(err)
	}
	if counts[feedback.EventClick] != 1 || counts[feedback.EventPurchase] != 1 {
		t.Errorf("只有合法请求应被记录: %v", counts)
	}
}

func TestRequestID_PassThrough(t *testing.T) {
	h := NewRouter(&fakeRecommender{}, nil, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get(RequestIDHeader); got != "req-1" {
		t.Errorf("请求 ID 应透传: %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	rec := &fakeRecommender{result: &core.RecommendationResult{Products: []*core.ScoredProduct{}}}
	h := NewRouter(rec, nil, Options{RateLimit: 1})

	get := func() int {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/recommendations?subject_type=USER&subject_id=u1", nil))
		return w.Code
	}
	if got := get(); got != http.StatusOK {
		t.Fatalf("第一次请求 status = %d", got)
	}
	if got := get(); got != http.StatusTooManyRequests {
		t.Errorf("超出限流应返回 429, got %d", got)
	}

	// 健康检查不限流
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(&fakeRecommender{}, nil, Options{})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "shoprec_validation_errors_total") {
		t.Error("/metrics 应导出 shoprec 指标")
	}
}
