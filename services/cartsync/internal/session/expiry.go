package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/storefront/pkg/logger"
)

// ExpiryGuard treats credentials whose JWT has expired as absent, so an
// expired login is reported as not authenticated without a round trip to
// the cart API. Signatures are not checked; tokens that are not JWTs pass
// through unchanged.
type ExpiryGuard struct {
	next   Provider
	leeway time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewExpiryGuard wraps next. Tokens expiring within leeway count as expired.
func NewExpiryGuard(next Provider, leeway time.Duration) *ExpiryGuard {
	return &ExpiryGuard{
		next:   next,
		leeway: leeway,
		now:    time.Now,
		parser: jwt.NewParser(),
	}
}

// Session implements Provider.
func (g *ExpiryGuard) Session(ctx context.Context) (*Credential, error) {
	c, err := g.next.Session(ctx)
	if err != nil || c == nil {
		return c, err
	}

	exp, ok := g.expiry(c.Token)
	if ok && !g.now().Add(g.leeway).Before(exp) {
		logger.FromContext(ctx).DebugContext(ctx, "session token expired",
			slog.Time("expired_at", exp),
		)
		return nil, nil
	}
	return c, nil
}

func (g *ExpiryGuard) expiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := g.parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
