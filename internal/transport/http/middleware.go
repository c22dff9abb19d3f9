package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
)

const (
	requestIDKey    = "request_id"
	userKey         = "user"
	requestIDHeader = "X-Request-ID"
)

// LoginLimiter throttles credential attempts per key.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	}
}

// recovery turns panics into the 500 envelope.
func recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("route", c.FullPath()),
					zap.String("request_id", c.GetString(requestIDKey)),
					zap.Stack("stack"),
				)
				abortWith(c, http.StatusInternalServerError, "")
			}
		}()
		c.Next()
	}
}

// cors only echoes whitelisted origins.
func cors(allowedOrigins []string) gin.HandlerFunc {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (originSet[origin] || originSet["*"]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimit applies a token bucket per client IP to every request.
func rateLimit(perSecond float64, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		visitors = make(map[string]*visitor)
		pruned   time.Time
	)
	const expiry = 3 * time.Minute

	return func(c *gin.Context) {
		now := time.Now()
		ip := c.ClientIP()

		mu.Lock()
		if now.Sub(pruned) > expiry {
			for k, v := range visitors {
				if now.Sub(v.lastSeen) > expiry {
					delete(visitors, k)
				}
			}
			pruned = now
		}
		v, ok := visitors[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
			visitors[ip] = v
		}
		v.lastSeen = now
		allowed := v.limiter.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			abortWith(c, http.StatusTooManyRequests, "")
			return
		}
		c.Next()
	}
}

// loginThrottle guards credential endpoints with limiter keyed by client IP.
func loginThrottle(limiter LoginLimiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// fail open
			log.Warn("login limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			abortWith(c, http.StatusTooManyRequests, "Too Many Attempts, Try Again Later")
			return
		}
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", domain.ErrUnauthorised
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", domain.ErrInvalidTokenScheme
	}
	return strings.TrimSpace(token), nil
}

// authenticate resolves the caller through the session manager and stores
// the user under userKey.
func authenticate(sessions *app.SessionManager, log *zap.Logger, debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			fail(c, log, debug, err)
			return
		}
		user, err := sessions.ValidateToken(c.Request.Context(), token)
		if err != nil {
			fail(c, log, debug, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	user, ok := c.Get(userKey)
	if !ok {
		panic(fmt.Sprintf("route %s used without authenticate", c.FullPath()))
	}
	return user.(*domain.User)
}
