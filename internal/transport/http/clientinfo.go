package http

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mssola/useragent"
	"go.uber.org/zap"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
	"hello-world-api/internal/infra/ipapi"
)

const (
	unknownDevice  = "Unknown"
	debugLocation  = "Unknown"
	defaultCountry = "GB"
)

var errInvalidRequest = domain.Validation("Invalid Request")

// Locator resolves a client IP to a location.
type Locator interface {
	Locate(ctx context.Context, ip string) (ipapi.Location, error)
}

// clientResolver derives the device and location recorded on a session.
type clientResolver struct {
	locator Locator
	debug   bool
	log     *zap.Logger
}

func (r clientResolver) resolve(c *gin.Context) (app.ClientInfo, error) {
	ua := c.Request.UserAgent()
	if ua == "" {
		return app.ClientInfo{}, errInvalidRequest
	}
	ip := c.ClientIP()
	if ip == "" {
		return app.ClientInfo{}, errInvalidRequest
	}

	info := app.ClientInfo{Device: deviceLabel(ua)}
	loc, err := r.locator.Locate(c.Request.Context(), ip)
	switch {
	case r.debug:
		info.Location, info.Country = loc.Label, loc.CountryCode
		if err != nil || info.Location == "" {
			info.Location = debugLocation
		}
		if err != nil || info.Country == "" {
			info.Country = defaultCountry
		}
	case err != nil:
		r.log.Info("client location lookup failed", zap.String("ip", ip), zap.Error(err))
		return app.ClientInfo{}, errInvalidRequest
	default:
		info.Location = loc.Label
		info.Country = loc.CountryCode
	}
	return info, nil
}

// deviceLabel renders "<Browser> on <OS> <version>" or "Unknown" when any
// part cannot be identified.
func deviceLabel(raw string) string {
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	os := ua.OSInfo()
	if browser == "" || os.Name == "" || os.Version == "" {
		return unknownDevice
	}
	return strings.Join([]string{browser, "on", os.Name, os.Version}, " ")
}
