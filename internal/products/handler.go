package products

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Tracker is the slice of the tracking service the HTTP layer needs.
type Tracker interface {
	Track(ctx context.Context, url string) (*Result, bool, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Result, error)
	History(ctx context.Context, id string) ([]PriceObservation, error)
}

type Handler struct {
	tracker Tracker
}

func NewHandler(t Tracker) *Handler {
	return &Handler{tracker: t}
}

type trackRequest struct {
	URL string `json:"url"`
}

// TrackProduct registers a URL for tracking. A missing URL is rejected
// before any extraction happens; re-registering a tracked URL echoes
// the existing product instead of creating a duplicate.
func (h *Handler) TrackProduct(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}
	res, created, err := h.tracker.Track(c.Request.Context(), req.URL)
	if err != nil {
		log.Printf("TrackProduct: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to track product"})
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *Handler) ListProducts(c *gin.Context) {
	list, err := h.tracker.ListProducts(c.Request.Context())
	if err != nil {
		log.Printf("ListProducts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch products"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetProduct(c *gin.Context) {
	res, err := h.tracker.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.Printf("GetProduct: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch product"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetPriceHistory(c *gin.Context) {
	hist, err := h.tracker.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.Printf("GetPriceHistory: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, hist)
}
