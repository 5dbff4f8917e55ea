package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/internal/middleware"
	"taskboard/internal/services"
)

// HeaderTimezone carries the caller's zone, either an IANA name or a UTC
// offset such as +05:00, so that "today" is the caller's calendar day.
const HeaderTimezone = "X-Timezone"

// tolerant of how the identity was stored (string / fmt.Stringer / number)
func getStringFromCtx(c *gin.Context, key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case fmt.Stringer:
		return t.String(), true
	case int, int64, float64:
		return fmt.Sprint(t), true
	}
	return "", false
}

func getUserID(c *gin.Context) string {
	id, _ := getStringFromCtx(c, middleware.UserIDKey)
	return id
}

// pathParam returns a trimmed path parameter and whether it is non-empty.
func pathParam(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	return v, v != ""
}

// clientContext returns the request context carrying the caller's location,
// if the request names one.
func clientContext(c *gin.Context) (context.Context, error) {
	loc, err := parseZone(c.GetHeader(HeaderTimezone))
	if err != nil {
		return nil, err
	}
	return services.WithClientLocation(c.Request.Context(), loc), nil
}

func parseZone(v string) (*time.Location, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if v == "Z" || v == "UTC" {
		return time.UTC, nil
	}
	if v[0] == '+' || v[0] == '-' {
		for _, layout := range []string{"-07:00", "-0700", "-07"} {
			if t, err := time.Parse(layout, v); err == nil {
				_, offset := t.Zone()
				return time.FixedZone(v, offset), nil
			}
		}
		return nil, fmt.Errorf("timezone: %q is not a UTC offset", v)
	}
	if v == "Local" {
		return nil, fmt.Errorf("timezone: %q is not a zone name", v)
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		return nil, fmt.Errorf("timezone: unknown zone %q", v)
	}
	return loc, nil
}
