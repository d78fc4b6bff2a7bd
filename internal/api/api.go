package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"poe-wealth/internal/models"
	"poe-wealth/internal/services/wealth"

	"github.com/gin-gonic/gin"
)

type PriceTables interface {
	Get(ctx context.Context, league string) models.Prices
	Category(ctx context.Context, league string, c models.Category) (models.Prices, error)
	Forget(league string)
}

type PriceDiagnostics interface {
	Matrix(ctx context.Context, league string, includeLowConfidence bool) ([]models.PriceSourceRow, error)
	SetGemTTL(d time.Duration)
	GemTTL() time.Duration
}

type Stashes interface {
	Tab(ctx context.Context, league, stashID string, substashID *string) (*models.TabWithItems, error)
	Stashes(ctx context.Context, league string) (*models.TabNoItems, error)
}

type Wealth interface {
	Snapshot(ctx context.Context, league string, refs []models.TabRef) (*models.WealthSnapshot, error)
	SnapshotFromTabs(ctx context.Context, league string, tabs []models.TabWithItems) (*models.WealthSnapshot, error)
	PriceVariance(ctx context.Context, league string, tabs []models.TabWithItems, b wealth.Baseline) wealth.Variance
}

type Snapshots interface {
	List(ctx context.Context, q models.SnapshotQuery) ([]models.WealthSnapshot, error)
	Count(ctx context.Context, q models.SnapshotQuery) (int64, error)
	Delete(ctx context.Context, league string) (int64, error)
	ClearCache()
	Export(ctx context.Context, league string, w io.Writer) error
}

// Services are the collaborators behind the routes.
type Services struct {
	Prices    PriceTables
	Matrix    PriceDiagnostics
	Stashes   Stashes
	Wealth    Wealth
	Snapshots Snapshots
}

type APIHandler struct {
	Services
}

func SetupRoutes(r *gin.RouterGroup, svc Services) *APIHandler {
	handler := &APIHandler{Services: svc}

	prices := r.Group("/prices")
	{
		prices.GET("", handler.GetPrices)
		prices.DELETE("", handler.ForgetPrices)
		prices.GET("/matrix", handler.GetPriceMatrix)
		prices.GET("/gems/ttl", handler.GetGemTTL)
		prices.PUT("/gems/ttl", handler.SetGemTTL)
		prices.GET("/:category", handler.GetCategoryPrices)
	}

	stashes := r.Group("/stashes")
	{
		stashes.GET("", handler.ListStashes)
		stashes.GET("/:stash_id", handler.GetStash)
	}

	w := r.Group("/wealth")
	{
		w.POST("/snapshot", handler.TakeSnapshot)
		w.POST("/snapshot/cached", handler.TakeCachedSnapshot)
		w.POST("/variance", handler.PriceVariance)
	}

	snapshots := r.Group("/snapshots")
	{
		snapshots.GET("", handler.ListSnapshots)
		snapshots.DELETE("", handler.DeleteSnapshots)
		snapshots.GET("/count", handler.CountSnapshots)
		snapshots.GET("/export", handler.ExportSnapshots)
		snapshots.POST("/cache/clear", handler.ClearSnapshotCache)
	}

	return handler
}

func statusFor(kind string) int {
	switch kind {
	case "invalidLeague":
		return http.StatusBadRequest
	case "authError":
		return http.StatusUnauthorized
	case "retryAfterError":
		return http.StatusTooManyRequests
	case "noDataForMarket":
		return http.StatusNotFound
	case "upstreamUnavailable", "stashTabError":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	kind := models.ErrorKind(err)
	body := gin.H{"error": err.Error(), "kind": kind}

	var st *models.StashTabError
	if errors.As(err, &st) {
		body["league"] = st.League
		body["stash_id"] = st.StashID
	}
	var rl *models.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.FormatUint(uint64(rl.RetryAfter), 10))
		body["retry_after"] = rl.RetryAfter
	}
	c.JSON(statusFor(kind), body)
}

func requireLeague(c *gin.Context) (string, bool) {
	league := c.Query("league")
	if league == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing league"})
		return "", false
	}
	if err := models.CheckLeague(league); err != nil {
		respondError(c, err)
		return "", false
	}
	return league, true
}

func (h *APIHandler) GetPrices(c *gin.Context) {
	league, ok := requireLeague(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Prices.Get(c.Request.Context(), league))
}

// ForgetPrices drops the in-memory table so the next read revalidates the file.
func (h *APIHandler) ForgetPrices(c *gin.Context) {
	league, ok := requireLeague(c)
	if !ok {
		return
	}
	h.Prices.Forget(league)
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) GetCategoryPrices(c *gin.Context) {
	league, ok := requireLeague(c)
	if !ok {
		return
	}
	category, ok := models.ParseCategory(c.Param("category"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown category %q", c.Param("category"))})
		return
	}
	p, err := h.Prices.Category(c.Request.Context(), league, category)
	if err != nil && p.Len(category) == 0 {
		respondError(c, err)
		return
	}
	// A persist failure still serves the fresh table.
	c.JSON(http.StatusOK, p)
}

func (h *APIHandler) GetPriceMatrix(c *gin.Context) {
	league, ok := requireLeague(c)
	if !ok {
		return
	}
	low, _ := strconv.ParseBool(c.DefaultQuery("low_confidence", "false"))
	rows, err := h.Matrix.Matrix(c.Request.Context(), league, low)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

func (h *APIHandler) GetGemTTL(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"minutes": h.Matrix.GemTTL().Minutes()})
}

func (h *APIHandler) SetGemTTL(c *gin.Context) {
	var req struct {
		Minutes *float64 `json:"minutes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Minutes < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "minutes must not be negative"})
		return
	}
	h.Matrix.SetGemTTL(time.Duration(*req.Minutes * float64(time.Minute)))
	c.JSON(http.StatusOK, gin.H{"minutes": h.Matrix.GemTTL().Minutes()})
}

func (h *APIHandler) ListStashes(c *gin.Context) {
	league, ok := requireLeague(c)
	if !ok {
		return
	}
	tabs, err := h.Stashes.Stashes(c.Request.Context(), league)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tabs)
}

func (h *APIHandler) GetStash(c *gin.Context) {
	league, ok := requireLeague(c)
	if !ok {
		return
	}
	stashID := c.Param("stash_id")
	var sub *string
	if s := c.Query("substash_id"); s != "" {
		sub = &s
	}
	tab, err := h.Stashes.Tab(c.Request.Context(), league, stashID, sub)
	if err != nil {
		respondError(c, &models.StashTabError{League: league, StashID: stashID, Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stash": tab})
}

type snapshotRequest struct {
	League string          `json:"league" binding:"required"`
	Tabs   []models.TabRef `json:"tabs" binding:"required,dive"`
}

type cachedSnapshotRequest struct {
	League string                `json:"league" binding:"required"`
	Tabs   []models.TabWithItems `json:"tabs"`
}

type varianceRequest struct {
	League string                `json:"league" binding:"required"`
	Tabs   []models.TabWithItems `json:"tabs"`
	wealth.Baseline
}

func (h *APIHandler) TakeSnapshot(c *gin.Context) {
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.Wealth.Snapshot(c.Request.Context(), req.League, req.Tabs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *APIHandler) TakeCachedSnapshot(c *gin.Context) {
	var req cachedSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.Wealth.SnapshotFromTabs(c.Request.Context(), req.League, req.Tabs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *APIHandler) PriceVariance(c *gin.Context) {
	var req varianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Wealth.PriceVariance(c.Request.Context(), req.League, req.Tabs, req.Baseline))
}

// snapshotQuery reads league, start, end, limit and offset from the query string.
func snapshotQuery(c *gin.Context) (models.SnapshotQuery, error) {
	q := models.SnapshotQuery{League: c.Query("league")}
	if q.League == "" {
		return q, errors.New("missing league")
	}
	if err := models.CheckLeague(q.League); err != nil {
		return q, err
	}
	for name, dst := range map[string]**int64{"start": &q.Start, "end": &q.End} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return q, fmt.Errorf("invalid %s", name)
		}
		*dst = &v
	}
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	q.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return q, nil
}

func (h *APIHandler) ListSnapshots(c *gin.Context) {
	q, err := snapshotQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snaps, err := h.Snapshots.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snaps)
}

func (h *APIHandler) CountSnapshots(c *gin.Context) {
	q, err := snapshotQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.Snapshots.Count(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *APIHandler) DeleteSnapshots(c *gin.Context) {
	n, err := h.Snapshots.Delete(c.Request.Context(), c.Query("league"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *APIHandler) ClearSnapshotCache(c *gin.Context) {
	h.Snapshots.ClearCache()
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) ExportSnapshots(c *gin.Context) {
	league, ok := requireLeague(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.Snapshots.Export(c.Request.Context(), league, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="snapshots-%s.xlsx"`, league))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
