package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"pricetracker/internal/products"
	"pricetracker/internal/scraper"
)

// ErrMissingURL rejects a tracking request before any network access.
var ErrMissingURL = errors.New("url is required")

// Store is the persistence gateway the tracker drives. *products.Repository
// implements it; tests substitute an in-memory fake.
type Store interface {
	CreateProduct(ctx context.Context, p *products.Product, first *products.PriceObservation) error
	GetProductByID(ctx context.Context, id string) (*products.Product, error)
	GetProductByURL(ctx context.Context, url string) (*products.Product, error)
	GetAllProducts(ctx context.Context) ([]products.Product, error)
	UpdateProduct(ctx context.Context, p *products.Product) error
	AddObservation(ctx context.Context, o *products.PriceObservation) error
	GetObservationsByProduct(ctx context.Context, productID string) ([]products.PriceObservation, error)
	GetLatestTwoObservations(ctx context.Context, productID string) ([]products.PriceObservation, error)
}

// Extractor turns a product URL into a usable record. It is total: a
// failed scrape yields a synthetic record, never an error.
type Extractor interface {
	Extract(ctx context.Context, url string) scraper.ExtractedProduct
}

type Service struct {
	store     Store
	extractor Extractor
	now       func() time.Time
}

func NewService(store Store, extractor Extractor) *Service {
	return &Service{store: store, extractor: extractor, now: time.Now}
}

// Track registers a URL for price tracking. A URL that is already
// tracked returns the existing product rather than creating a
// duplicate; the second return value reports whether a product was
// created.
func (s *Service) Track(ctx context.Context, url string) (*products.Result, bool, error) {
	if url == "" {
		return nil, false, ErrMissingURL
	}

	existing, err := s.store.GetProductByURL(ctx, url)
	if err != nil && !errors.Is(err, products.ErrNotFound) {
		return nil, false, err
	}
	if existing != nil {
		res, err := s.resultFor(ctx, existing)
		return res, false, err
	}

	rec := s.extractor.Extract(ctx, url)
	p, obs := s.reconcile(nil, rec, s.now().UTC())
	p.URL = url
	if err := s.store.CreateProduct(ctx, p, obs); err != nil {
		return nil, false, err
	}
	return &products.Result{Product: *p, History: []products.PriceObservation{*obs}}, true, nil
}

// UpdateOne refreshes a single tracked product: extract, reconcile,
// persist. An unknown id is a hard error for the caller.
func (s *Service) UpdateOne(ctx context.Context, productID string) (*products.Result, error) {
	existing, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", productID, err)
	}

	rec := s.extractor.Extract(ctx, existing.URL)
	p, obs := s.reconcile(existing, rec, s.now().UTC())

	if err := s.store.AddObservation(ctx, obs); err != nil {
		return nil, fmt.Errorf("update product %s: %w", productID, err)
	}
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("update product %s: %w", productID, err)
	}
	return s.resultFor(ctx, p)
}

// UpdateAll sweeps every tracked product in sequence. A failing item is
// logged and skipped; the sweep never fails because of one product.
func (s *Service) UpdateAll(ctx context.Context) ([]products.Result, error) {
	all, err := s.store.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		log.Println("tracker: no products to update")
		return nil, nil
	}

	var results []products.Result
	for _, p := range all {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		res, err := s.UpdateOne(ctx, p.ID)
		if err != nil {
			log.Printf("tracker: failed to update product %s: %v", p.ID, err)
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// ListProducts returns all tracked products newest-checked first, each
// with its computed price change.
func (s *Service) ListProducts(ctx context.Context) ([]products.Product, error) {
	all, err := s.store.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		change, err := s.PriceChange(ctx, all[i].ID)
		if err != nil {
			return nil, err
		}
		all[i].PriceChange = change
	}
	return all, nil
}

// GetProduct returns one product with its full history.
func (s *Service) GetProduct(ctx context.Context, id string) (*products.Result, error) {
	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resultFor(ctx, p)
}

// History returns a product's observations in chronological order.
func (s *Service) History(ctx context.Context, id string) ([]products.PriceObservation, error) {
	if _, err := s.store.GetProductByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetObservationsByProduct(ctx, id)
}

// PriceChange is the latest price minus the one before it; nil until a
// product has two observations.
func (s *Service) PriceChange(ctx context.Context, productID string) (*float64, error) {
	latest, err := s.store.GetLatestTwoObservations(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(latest) < 2 {
		return nil, nil
	}
	change := latest[0].Price - latest[1].Price
	return &change, nil
}

// reconcile folds one extracted record into persisted product state. A
// nil existing product seeds a fresh one with highest = lowest =
// current; otherwise aggregates are widened and the prior title/image
// win when the extracted ones are empty. One observation is produced
// either way.
func (s *Service) reconcile(existing *products.Product, rec scraper.ExtractedProduct, now time.Time) (*products.Product, *products.PriceObservation) {
	obs := &products.PriceObservation{
		ID:        uuid.New().String(),
		Price:     rec.Price,
		Timestamp: now,
	}

	if existing == nil {
		p := &products.Product{
			ID:           uuid.New().String(),
			Title:        rec.Title,
			CurrentPrice: rec.Price,
			ImageURL:     rec.ImageURL,
			LastChecked:  now,
			CreatedAt:    now,
			HighestPrice: ptr(rec.Price),
			LowestPrice:  ptr(rec.Price),
		}
		obs.ProductID = p.ID
		return p, obs
	}

	p := *existing
	if rec.Title != "" {
		p.Title = rec.Title
	}
	if rec.ImageURL != "" {
		p.ImageURL = rec.ImageURL
	}
	p.CurrentPrice = rec.Price

	// An absent prior bound compares as -Inf/+Inf so the first real
	// price always becomes the aggregate.
	highest := math.Inf(-1)
	if p.HighestPrice != nil {
		highest = *p.HighestPrice
	}
	lowest := math.Inf(1)
	if p.LowestPrice != nil {
		lowest = *p.LowestPrice
	}
	p.HighestPrice = ptr(math.Max(highest, rec.Price))
	p.LowestPrice = ptr(math.Min(lowest, rec.Price))
	p.LastChecked = now

	obs.ProductID = p.ID
	return &p, obs
}

func (s *Service) resultFor(ctx context.Context, p *products.Product) (*products.Result, error) {
	history, err := s.store.GetObservationsByProduct(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	change, err := s.PriceChange(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.PriceChange = change
	return &products.Result{Product: *p, History: history}, nil
}

func ptr(v float64) *float64 { return &v }
