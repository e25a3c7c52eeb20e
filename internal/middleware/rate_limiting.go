package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/2beens/engblog/internal/telemetry/metrics"
	"github.com/2beens/engblog/pkg"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"
)

type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

var _ RequestRateLimiter = (*redis_rate.Limiter)(nil)

// RateLimit allows allowedPerMin requests per minute per client IP on the routerName key.
// Requests with an unreadable client address share the routerName key.
func RateLimit(
	rateLimiter RequestRateLimiter,
	routerName string,
	allowedPerMin int,
	metricsManager *metrics.Manager,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := routerName
			if ip, err := pkg.ReadUserIP(r); err == nil {
				key = routerName + "||" + ip
			} else {
				log.Debugf("rate limiter [%s]: %s", routerName, err)
			}

			res, err := rateLimiter.Allow(
				r.Context(),
				key,
				redis_rate.PerMinute(allowedPerMin),
			)
			if err != nil {
				log.Errorf("rate limiter [%s]: %s", routerName, err)
				pkg.WriteJSON(w, map[string]any{
					"success": false,
					"error":   "rate limit internal error",
				}, http.StatusInternalServerError)
				return
			}

			if res.Allowed > 0 {
				next.ServeHTTP(w, r)
				return
			}

			if metricsManager != nil {
				metricsManager.CounterRateLimitedRequests.Inc()
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", res.RetryAfter.Seconds()))
			pkg.WriteJSON(w, map[string]any{
				"success": false,
				"error":   fmt.Sprintf("retry after %.0f seconds", res.RetryAfter.Seconds()),
			}, http.StatusTooManyRequests)
		})
	}
}
