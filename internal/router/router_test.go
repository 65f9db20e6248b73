package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dealscope/internal/domain"
	"dealscope/internal/handler"
	"dealscope/internal/router"
	"dealscope/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(svc *mocks.MockAnalysisService) *gin.Engine {
	return router.Setup(
		handler.NewAnalysisHandler(svc),
		handler.NewHealthHandler(nil),
		router.Options{AllowedOrigins: []string{"http://localhost:3000"}, MaxUploadBytes: 1 << 20},
	)
}

func TestSetup_Routes(t *testing.T) {
	svc := new(mocks.MockAnalysisService)
	id := uuid.New()
	svc.On("GetReport", mock.Anything, id).Return(&domain.InvestmentReport{AnalysisID: id}, nil)
	svc.On("ListReports", mock.Anything, 0, 20).Return([]domain.ReportSummary{}, 0, nil)
	svc.On("GetArchiveURL", mock.Anything, id).Return("https://example.com/a", nil)

	r := setup(svc)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/api/v1/analyses", http.StatusOK},
		{http.MethodGet, "/api/v1/analyses/" + id.String(), http.StatusOK},
		{http.MethodGet, "/api/v1/analyses/" + id.String() + "/archive-url", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(tt.method, tt.path, http.NoBody)
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSetup_MiddlewareApplied(t *testing.T) {
	r := setup(new(mocks.MockAnalysisService))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
