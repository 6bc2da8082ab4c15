package ratelimit

import (
	"net/http"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewStore wires a limiter store backed by Redis.
func NewStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "loja:ratelimit"})
}

// Middleware returns a chi-compatible middleware enforcing the formatted
// rate, e.g. "30-M" for thirty requests per minute per client IP.
func Middleware(store limiter.Store, format string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(format)
	if err != nil {
		return nil, err
	}
	mw := limiterhttp.NewMiddleware(limiter.New(store, rate))
	return mw.Handler, nil
}
