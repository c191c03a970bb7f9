// Package catalog serves the product catalog campaigns are generated from.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultLatency mimics a remote storefront round trip.
const DefaultLatency = 800 * time.Millisecond

// ErrNotFound is returned by Get for an unknown product ID.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item.
type Product struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Price    float64  `json:"price"`
	Category string   `json:"category"`
	Features []string `json:"features"`
	ImageURI string   `json:"image"`
}

// Catalog is an in-memory product catalog with simulated latency.
type Catalog struct {
	products []Product
	latency  time.Duration
}

// New returns a catalog holding products. A negative latency is treated as zero.
func New(products []Product, latency time.Duration) *Catalog {
	if latency < 0 {
		latency = 0
	}
	return &Catalog{products: products, latency: latency}
}

// NewMock returns the demo storefront catalog.
func NewMock(latency time.Duration) *Catalog {
	return New(mockProducts(), latency)
}

// List returns every product in catalog order.
func (c *Catalog) List(ctx context.Context) ([]Product, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	out := make([]Product, len(c.products))
	for i, p := range c.products {
		out[i] = p.clone()
	}
	return out, nil
}

// Get returns the product with the given ID, or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (Product, error) {
	if err := c.wait(ctx); err != nil {
		return Product{}, err
	}
	for _, p := range c.products {
		if p.ID == id {
			return p.clone(), nil
		}
	}
	return Product{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (c *Catalog) wait(ctx context.Context) error {
	if c.latency == 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.latency):
		return nil
	}
}

func (p Product) clone() Product {
	p.Features = append([]string(nil), p.Features...)
	return p
}

func mockProducts() []Product {
	return []Product{
		{
			ID:       "prod_001",
			Title:    "Nebula Runner 2025",
			Price:    149.99,
			Category: "Footwear",
			Features: []string{"Anti-gravity sole", "Bioluminescent trim", "Self-lacing"},
			ImageURI: "https://images.unsplash.com/photo-1542291026-7eec264c27ff?auto=format&fit=crop&w=300&q=80",
		},
		{
			ID:       "prod_002",
			Title:    "Quantum Noise-Cancel Headset",
			Price:    299.00,
			Category: "Electronics",
			Features: []string{"AI Audio Scaling", "100hr Battery", "Holographic Display"},
			ImageURI: "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?auto=format&fit=crop&w=300&q=80",
		},
		{
			ID:       "prod_003",
			Title:    "Eco-Smart Water Bottle",
			Price:    45.00,
			Category: "Lifestyle",
			Features: []string{"Hydration Tracking", "Self-cleaning UV", "Temperature Control"},
			ImageURI: "https://images.unsplash.com/photo-1602143407151-011141951f7c?auto=format&fit=crop&w=300&q=80",
		},
		{
			ID:       "prod_004",
			Title:    "Cyberpunk Desk Lamp",
			Price:    89.50,
			Category: "Home Decor",
			Features: []string{"RGB Sync", "Voice Control", "Wireless Charging Base"},
			ImageURI: "https://images.unsplash.com/photo-1534073828943-f801091a7174?auto=format&fit=crop&w=300&q=80",
		},
	}
}
