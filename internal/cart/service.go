package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/pranjal1404/easyshopin/internal/catalog"
)

// ErrInvalidQuantity covers both a quantity below 1 and a quantity
// above the product's known stock count.
var ErrInvalidQuantity = errors.New("invalid quantity")

type Service struct {
	repo    Repository
	cache   Cache
	catalog catalog.Lookup
	rules   PricingRules
	sfg     singleflight.Group // Prevents cache stampede
	log     zerolog.Logger
}

func NewService(repo Repository, cache Cache, cat catalog.Lookup, rules PricingRules, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		catalog: cat,
		rules:   rules,
		log:     log.With().Str("component", "cart").Logger(),
	}
}

func (s *Service) Rules() PricingRules {
	return s.rules
}

// Get returns the user's cart, falling back to an empty cart when none
// is stored yet. Reads go through the cache with singleflight so
// concurrent misses for the same user hit storage once.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		c, err := s.cache.Get(ctx, userID)
		if err == nil {
			return c, nil // cart is in cache
		}

		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn().Err(err).Msg("cache get error") // log cache error but continue
		}

		c, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil && errors.Is(errGet, ErrCartNotFound) { // no stored cart, return empty cart
			return &Cart{
				UserID:    userID,
				Items:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), userID, c)
			if errSet != nil {
				s.log.Warn().Err(errSet).Msg("cache set error")
			}
		}()

		return c, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*Cart), nil
}

// AddItem puts quantity units of the product into the cart, snapshotting
// name, brand, image and unit price from the catalog. If the product is
// already present its quantity is replaced. Quantity must be at least 1
// and no more than the product's available stock.
func (s *Service) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidQuantity)
	}

	p, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.CountInStock {
		return nil, fmt.Errorf("%w: quantity %d exceeds available stock %d", ErrInvalidQuantity, quantity, p.CountInStock)
	}

	item := CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Brand:     p.Brand,
		Image:     p.Image,
		UnitPrice: p.Price,
		Quantity:  quantity,
	}

	if errAdd := s.repo.AddItem(ctx, userID, item); errAdd != nil {
		s.log.Error().Err(errAdd).Int64("product_id", productID).Msg("repo add item error")
		return nil, errAdd
	}

	s.invalidateCache(userID)
	return s.Get(ctx, userID)
}

// RemoveItem removes the product from the cart. Removing an absent
// product, or removing from a cart that does not exist, is a no-op.
func (s *Service) RemoveItem(ctx context.Context, userID string, productID int64) (*Cart, error) {
	errRemove := s.repo.RemoveItem(ctx, userID, productID)
	if errRemove != nil && !errors.Is(errRemove, ErrCartNotFound) && !errors.Is(errRemove, ErrItemNotFound) {
		s.log.Error().Err(errRemove).Int64("product_id", productID).Msg("repo remove item error")
		return nil, errRemove
	}

	s.invalidateCache(userID)
	return s.Get(ctx, userID)
}

// Clear empties the cart and unsets the shipping address and payment
// method. Clearing an already-empty cart is a no-op.
func (s *Service) Clear(ctx context.Context, userID string) error {
	errDelete := s.repo.DeleteCart(ctx, userID)
	if errDelete != nil && !errors.Is(errDelete, ErrCartNotFound) {
		s.log.Error().Err(errDelete).Msg("repo delete cart error")
		return errDelete
	}

	s.invalidateCache(userID)
	return nil
}

func (s *Service) SaveShippingAddress(ctx context.Context, userID string, addr Address) error {
	if err := s.repo.SaveShippingAddress(ctx, userID, addr); err != nil {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

func (s *Service) SavePaymentMethod(ctx context.Context, userID string, method string) error {
	if err := s.repo.SavePaymentMethod(ctx, userID, method); err != nil {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

// Totals returns the derived pricing for the user's current cart.
func (s *Service) Totals(ctx context.Context, userID string) (Totals, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return Totals{}, err
	}
	return c.Totals(s.rules), nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn().Err(err).Msg("cache invalidate error")
	}
}
