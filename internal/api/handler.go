package api

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/abandoned-explorer/internal/broadcast"
	"github.com/mr1hm/abandoned-explorer/internal/models"
	"github.com/mr1hm/abandoned-explorer/internal/repository"
)

const (
	defaultLimit  = 20
	maxLimit      = 500
	defaultRadius = 50.0 // km
	maxRadius     = 500.0
	earthRadiusKm = 6371.0
	kmPerDegree   = 111.32
)

// Store is the read side the API needs.
type Store interface {
	repository.LocationRepository
	Ping(ctx context.Context) error
}

// Scheduler accepts on-demand region runs.
type Scheduler interface {
	CheckRegions(regions []string) error
	Enqueue(regions []string) bool
}

type Handler struct {
	store       Store
	broadcaster *broadcast.Broadcaster
	scheduler   Scheduler
	logger      *slog.Logger
}

// NewHandler wires the routes' dependencies. broadcaster and scheduler may
// be nil, which disables the stream and scrape endpoints.
func NewHandler(store Store, broadcaster *broadcast.Broadcaster, scheduler Scheduler, logger *slog.Logger) *Handler {
	return &Handler{
		store:       store,
		broadcaster: broadcaster,
		scheduler:   scheduler,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/locations", h.getLocations)
	api.GET("/locations/nearby", h.getNearby)
	api.GET("/locations/:id", h.getLocation)
	api.GET("/stats", h.getStats)
	api.GET("/categories", h.getCategories)
	api.GET("/risk-levels", h.getRiskLevels)
	api.GET("/stream", h.stream)
	api.POST("/scrape", h.scrape)
}

func (h *Handler) getLocations(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	locations, err := h.store.ListLocations(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("error listing locations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch locations",
		})
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(locations))
}

// getNearby returns locations within radius km of lat/lng, nearest first.
func (h *Handler) getNearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	radius := defaultRadius
	if r := c.Query("radius"); r != "" {
		v, err := strconv.ParseFloat(r, 64)
		if err != nil || v <= 0 || v > maxRadius {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be between 0 and 500 km"})
			return
		}
		radius = v
	}

	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, offset := filter.Limit, filter.Offset

	// Prefilter with a box in SQL, then rank every row in it by true
	// distance before paging.
	box := boxAround(lat, lng, radius)
	filter.BBox = &box
	filter.Limit = 0
	filter.Offset = 0

	candidates, err := h.store.ListLocations(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("error listing nearby locations", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch locations"})
		return
	}

	type hit struct {
		loc  models.Location
		dist float64
	}
	hits := make([]hit, 0, len(candidates))
	for _, loc := range candidates {
		if d := distanceKm(lat, lng, loc.Latitude, loc.Longitude); d <= radius {
			hits = append(hits, hit{loc, d})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.dist, b.dist) })
	hits = hits[min(offset, len(hits)):]
	hits = hits[:min(limit, len(hits))]

	fc := toGeoJSON(nil)
	for _, hh := range hits {
		f := toFeature(hh.loc, false)
		f.Properties["distance_km"] = math.Round(hh.dist*100) / 100
		fc.Features = append(fc.Features, f)
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) getLocation(c *gin.Context) {
	loc, err := h.store.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
		return
	}
	if err != nil {
		h.logger.Error("error fetching location", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch location"})
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toFeature(*loc, true))
}

type categoryStat struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Count int    `json:"count"`
}

type riskStat struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// getStats reports totals plus category and risk breakdowns. Every category
// and risk level is listed, including empty ones.
func (h *Handler) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := h.store.Count(ctx)
	if err != nil {
		h.statsError(c, err)
		return
	}
	byCategory, err := h.store.CountByCategory(ctx)
	if err != nil {
		h.statsError(c, err)
		return
	}
	byRisk, err := h.store.CountByRisk(ctx)
	if err != nil {
		h.statsError(c, err)
		return
	}

	categories := make([]categoryStat, 0, len(models.Categories))
	seen := make(map[models.Category]bool)
	for _, cc := range byCategory {
		seen[cc.Category] = true
		categories = append(categories, categoryStat{cc.Category.Key(), cc.Category.Name(), cc.Category.Icon(), cc.Count})
	}
	for _, cat := range models.Categories {
		if !seen[cat] {
			categories = append(categories, categoryStat{cat.Key(), cat.Name(), cat.Icon(), 0})
		}
	}

	counts := make(map[models.RiskLevel]int)
	for _, rc := range byRisk {
		counts[rc.RiskLevel] = rc.Count
	}
	risks := make([]riskStat, 0, len(models.RiskLevels))
	for _, r := range models.RiskLevels {
		risks = append(risks, riskStat{r.Key(), r.Name(), r.Color(), counts[r]})
	}

	c.JSON(http.StatusOK, gin.H{
		"total":       total,
		"categories":  categories,
		"risk_levels": risks,
	})
}

func (h *Handler) statsError(c *gin.Context, err error) {
	h.logger.Error("error computing stats", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
}

func (h *Handler) getCategories(c *gin.Context) {
	out := make([]gin.H, 0, len(models.Categories))
	for _, cat := range models.Categories {
		out = append(out, gin.H{"id": cat.ID(), "key": cat.Key(), "name": cat.Name(), "icon": cat.Icon()})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getRiskLevels(c *gin.Context) {
	out := make([]gin.H, 0, len(models.RiskLevels))
	for _, r := range models.RiskLevels {
		out = append(out, gin.H{"id": r.ID(), "key": r.Key(), "name": r.Name(), "color": r.Color(), "risk": r.Ordinal()})
	}
	c.JSON(http.StatusOK, out)
}

// stream pushes newly inserted locations as server-sent events until the
// client disconnects or the broadcaster closes.
func (h *Handler) stream(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream not available"})
		return
	}

	id, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)
	h.logger.Info("stream client connected", "subscriber", id)

	// Send headers now so clients see the stream open before the first event.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case loc, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("location", toFeature(loc, false))
			return true
		}
	})

	h.logger.Info("stream client disconnected", "subscriber", id)
}

type scrapeRequest struct {
	Regions []string `json:"regions" binding:"required,min=1"`
}

func (h *Handler) scrape(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduled scraping is disabled"})
		return
	}

	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "regions is required"})
		return
	}
	if err := h.scheduler.CheckRegions(req.Regions); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.scheduler.Enqueue(req.Regions) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scrape queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": req.Regions})
}

func (h *Handler) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseFilter(c *gin.Context) (repository.Filter, error) {
	filter := repository.Filter{
		Limit: defaultLimit, // Default to 20 locations if limit param not supplied
	}

	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxLimit {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}
	if cat := c.Query("category"); cat != "" {
		parsed, err := models.ParseCategory(cat)
		if err != nil {
			return filter, err
		}
		filter.Category = &parsed
	}
	if r := c.Query("min_risk"); r != "" {
		parsed, err := models.ParseRiskLevel(r)
		if err != nil {
			return filter, err
		}
		filter.MinRisk = &parsed
	}
	if b := c.Query("bbox"); b != "" {
		box, err := models.ParseBBox(b)
		if err != nil {
			return filter, err
		}
		filter.BBox = &box
	}

	return filter, nil
}

func boxAround(lat, lng, radiusKm float64) models.BBox {
	dLat := radiusKm / kmPerDegree
	dLng := radiusKm / (kmPerDegree * math.Max(math.Cos(lat*math.Pi/180), 0.01))
	return models.BBox{
		South: math.Max(lat-dLat, -90),
		West:  math.Max(lng-dLng, -180),
		North: math.Min(lat+dLat, 90),
		East:  math.Min(lng+dLng, 180),
	}
}

// distanceKm is the haversine great-circle distance.
func distanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
