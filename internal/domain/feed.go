package domain

import "context"

// PriceFeed supplies the latest traded price for a symbol. Implementations
// should fail fast; the engine treats any error as "skip this symbol this
// tick", never as a reason to open or close a position.
type PriceFeed interface {
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
}
