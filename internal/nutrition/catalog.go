// Package nutrition resolves canonical food keys to nutrition profiles.
package nutrition

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/nutrisnap/nutrisnap/internal/datastore"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// DefaultCacheTTL is used when no cache lifetime is configured
const DefaultCacheTTL = 10 * time.Minute

// Store reads nutrition profiles by food key
type Store interface {
	NutritionProfile(ctx context.Context, foodKey string) (*datastore.NutritionProfile, error)
}

// Profile holds per-100 g facts and the default serving of one food
type Profile struct {
	FoodKey         string  `json:"food"`
	CaloriesPer100g int     `json:"calories_per_100g"`
	Protein         float64 `json:"protein"`
	Carbs           float64 `json:"carbs"`
	Fat             float64 `json:"fat"`
	DefaultServingG int     `json:"default_serving_g"`
}

// ServingCalories returns the calories of the default serving
func (p Profile) ServingCalories() int {
	return CaloriesForServing(p.CaloriesPer100g, p.DefaultServingG)
}

// CaloriesForServing scales per-100 g calories to grams, rounding half away
// from zero: 266 kcal × 150 g → 399.
func CaloriesForServing(caloriesPer100g, grams int) int {
	return int(math.Round(float64(caloriesPer100g) * float64(grams) / 100))
}

func fromRow(row *datastore.NutritionProfile) Profile {
	return Profile{
		FoodKey:         row.FoodKey,
		CaloriesPer100g: row.CaloriesPer100g,
		Protein:         row.ProteinPer100g,
		Carbs:           row.CarbsPer100g,
		Fat:             row.FatPer100g,
		DefaultServingG: row.DefaultServingG,
	}
}

// Catalog caches profiles and substitutes the default profile for unknown keys
type Catalog struct {
	store      Store
	cache      *cache.Cache
	defaultKey string
	fallback   Profile
	log        logger.Logger
}

// NewCatalog loads the default profile. A missing default is a configuration
// error and the catalog is not created.
func NewCatalog(ctx context.Context, store Store, defaultKey string, ttl time.Duration, log logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.Global().Module("nutrition")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	defaultKey = normalizeKey(defaultKey)

	row, err := store.NutritionProfile(ctx, defaultKey)
	if err != nil {
		return nil, errors.New(err).
			Component("nutrition").
			Category(errors.CategoryConfiguration).
			Priority(errors.PriorityCritical).
			Context("default_food", defaultKey).
			Build()
	}

	c := &Catalog{
		store:      store,
		cache:      cache.New(ttl, 2*ttl),
		defaultKey: defaultKey,
		fallback:   fromRow(row),
		log:        log,
	}
	c.cache.SetDefault(defaultKey, c.fallback)
	return c, nil
}

// DefaultKey returns the designated default food key
func (c *Catalog) DefaultKey() string { return c.defaultKey }

// Resolve returns the profile of foodKey, or the default profile when the
// key is unknown or the store fails. The second result reports whether the
// default was substituted.
func (c *Catalog) Resolve(ctx context.Context, foodKey string) (Profile, bool) {
	p, err := c.Lookup(ctx, foodKey)
	if err == nil {
		return p, false
	}
	if !errors.IsNotFound(err) {
		c.log.WithContext(ctx).Warn("profile lookup failed, using default",
			logger.String("food_key", foodKey),
			logger.Error(err))
	}
	return c.fallback, true
}

// Lookup returns the profile of foodKey without substituting the default.
// Unknown keys yield datastore.ErrProfileNotFound.
func (c *Catalog) Lookup(ctx context.Context, foodKey string) (Profile, error) {
	key := normalizeKey(foodKey)
	if v, ok := c.cache.Get(key); ok {
		if p, ok := v.(Profile); ok {
			return p, nil
		}
	}

	row, err := c.store.NutritionProfile(ctx, key)
	if err != nil {
		return Profile{}, err
	}
	p := fromRow(row)
	c.cache.SetDefault(key, p)
	return p, nil
}

// Invalidate empties the cache, keeping the default profile
func (c *Catalog) Invalidate() {
	c.cache.Flush()
	c.cache.SetDefault(c.defaultKey, c.fallback)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
