package gate

import (
	"context"
	"fmt"
)

type Occupancy string

const (
	OccupancyEmpty     Occupancy = "EMPTY"
	OccupancyPopulated Occupancy = "POPULATED"
)

// FootprintCounter counts records this pipeline would have written.
type FootprintCounter interface {
	CountFootprint(ctx context.Context) (int64, error)
}

// CheckIdempotency reports POPULATED when any footprint record exists. It
// proves only that some data is present, not which dataset or version
// produced it.
func CheckIdempotency(ctx context.Context, counter FootprintCounter) (Occupancy, int64, error) {
	n, err := counter.CountFootprint(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("idempotency check: %w", err)
	}
	if n > 0 {
		return OccupancyPopulated, n, nil
	}
	return OccupancyEmpty, 0, nil
}
