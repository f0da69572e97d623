package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/titledesk/backend/internal/interfaces/http/dto"
)

// SwaggerConfig controls access to the API documentation endpoints.
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool
	// AllowedIPs restricts access to the listed addresses. Entries may be
	// single IPs or CIDR ranges; an empty list allows everyone.
	AllowedIPs []string
}

// SwaggerProtection guards the documentation routes. Disabled docs answer
// 404 as if the route did not exist. When an allowlist is configured the
// client address is checked before requireAuth runs, so address failures
// never leak whether credentials were valid.
func SwaggerProtection(cfg SwaggerConfig, requireAuth gin.HandlerFunc) gin.HandlerFunc {
	allowed := parseAllowlist(cfg.AllowedIPs)
	// Keyed off the raw config: a list of only malformed entries locks the
	// docs instead of silently opening them.
	restricted := len(cfg.AllowedIPs) > 0

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.AbortWithStatusJSON(http.StatusNotFound,
				dto.NewErrorResponse(dto.ErrCodeNotFound, "API documentation is not available"))
			return
		}
		if restricted && !allowed.contains(clientAddr(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				dto.NewErrorResponse(dto.ErrCodeForbidden, "Access to API documentation is restricted"))
			return
		}
		if cfg.RequireAuth && requireAuth != nil {
			requireAuth(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}

// ipAllowlist holds a parsed allowlist. Malformed entries are dropped at
// parse time.
type ipAllowlist struct {
	ips  []net.IP
	nets []*net.IPNet
}

func parseAllowlist(entries []string) ipAllowlist {
	var allowed ipAllowlist
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil {
				allowed.nets = append(allowed.nets, network)
			}
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			allowed.ips = append(allowed.ips, ip)
		}
	}
	return allowed
}

func (a ipAllowlist) contains(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, allowed := range a.ips {
		if allowed.Equal(ip) {
			return true
		}
	}
	for _, network := range a.nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// clientAddr resolves the caller's address. Gin's ClientIP honors trusted
// proxy headers; when it cannot produce an address (a bare RemoteAddr
// without a port, typically) the raw remote address is parsed directly.
func clientAddr(c *gin.Context) net.IP {
	if ip := net.ParseIP(c.ClientIP()); ip != nil {
		return ip
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		host = c.Request.RemoteAddr
	}
	return net.ParseIP(host)
}
