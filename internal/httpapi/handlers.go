package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardend/internal/analysis"
	"github.com/fyrsmithlabs/wardend/internal/cluster"
	"github.com/fyrsmithlabs/wardend/internal/store"
)

// VerifyRequest is the request body for POST /api/verify.
type VerifyRequest struct {
	Text string `json:"text"`
}

// VerifyResponse is the response body for POST /api/verify.
type VerifyResponse struct {
	Verdict       string    `json:"verdict"`
	Confidence    float64   `json:"confidence"`
	Category      string    `json:"category"`
	Explanation   string    `json:"explanation"`
	ClusterID     string    `json:"clusterId"`
	IsClusterHead bool      `json:"isClusterHead"`
	Variations    int64     `json:"variations"`
	Timestamp     time.Time `json:"timestamp"`
}

// DashboardResponse is the response body for GET /api/dashboard.
type DashboardResponse struct {
	Items           []store.Item   `json:"items"`
	TotalDetections int64          `json:"totalDetections"`
	TotalUpvotes    int64          `json:"totalUpvotes"`
	Stats           DashboardStats `json:"stats"`
	Timestamp       time.Time      `json:"timestamp"`
}

// DashboardStats duplicates the totals under the legacy key.
type DashboardStats struct {
	Total        int64 `json:"total"`
	TotalUpvotes int64 `json:"totalUpvotes"`
}

// TrendingResponse is the response body for GET /api/trending.
type TrendingResponse struct {
	Items     []store.Item `json:"items"`
	Period    string       `json:"period"`
	SortBy    string       `json:"sortBy"`
	Count     int          `json:"count"`
	Timestamp time.Time    `json:"timestamp"`
}

// UpvoteRequest is the request body for POST /api/upvote.
type UpvoteRequest struct {
	ID string `json:"id"`
}

// UpvoteResponse is the response body for POST /api/upvote.
type UpvoteResponse struct {
	Success bool  `json:"success"`
	Upvotes int64 `json:"upvotes"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "wardend",
		Version: Version,
	})
}

func (s *Server) handleVerify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid verify request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	item, err := s.submitter.Submit(c.Request().Context(), req.Text)
	if err != nil {
		return s.verifyError(c, err)
	}

	return c.JSON(http.StatusOK, VerifyResponse{
		Verdict:       item.Verdict,
		Confidence:    item.Confidence,
		Category:      item.Category,
		Explanation:   item.Explanation,
		ClusterID:     item.ClusterID,
		IsClusterHead: item.IsClusterHead,
		Variations:    item.Variations,
		Timestamp:     item.Timestamp,
	})
}

// verifyError maps pipeline failures to HTTP responses. Internal detail goes
// to the log; callers get a stable message.
func (s *Server) verifyError(c echo.Context, err error) error {
	var verr *cluster.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": verr.Reason})
	}

	var perr *analysis.PolicyRejectionError
	if errors.As(err, &perr) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":       perr.Message(),
			"contentType": perr.Code,
		})
	}

	var pwe *cluster.PartialWriteError
	if errors.As(err, &pwe) {
		s.logger.Error("partial cluster write", zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]any{
			"error":         "submission stored but cluster update incomplete",
			"id":            pwe.ItemID,
			"failedPeerIds": pwe.FailedPeerIDs,
		})
	}

	s.logger.Error("verification failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": "Unable to analyze due to API errors. Please try again later.",
	})
}

func (s *Server) handleDashboard(c echo.Context) error {
	view, err := s.views.Dashboard(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		s.logger.Error("dashboard failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load dashboard"})
	}

	return c.JSON(http.StatusOK, DashboardResponse{
		Items:           view.Items,
		TotalDetections: view.TotalDetections,
		TotalUpvotes:    view.TotalUpvotes,
		Stats: DashboardStats{
			Total:        view.TotalDetections,
			TotalUpvotes: view.TotalUpvotes,
		},
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleTrending(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
		}
		limit = parsed
	}

	view, err := s.views.Trending(c.Request().Context(), c.QueryParam("period"), c.QueryParam("sort"), limit)
	if err != nil {
		s.logger.Error("trending failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load trending"})
	}

	return c.JSON(http.StatusOK, TrendingResponse{
		Items:     view.Items,
		Period:    view.Period,
		SortBy:    view.SortBy,
		Count:     len(view.Items),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleExport(c echo.Context) error {
	filename, data, err := s.views.Export(c.Request().Context())
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate export"})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "text/csv", data)
}

func (s *Server) handleUpvote(c echo.Context) error {
	var req UpvoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "ID required"})
	}

	count, err := s.views.Upvote(c.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found"})
		}
		s.logger.Error("upvote failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to upvote"})
	}

	return c.JSON(http.StatusOK, UpvoteResponse{Success: true, Upvotes: count})
}
