package checkout

import (
	"net/url"
	"strings"

	"github.com/kctmenswear/storefront/internal/domain/shared"
)

// DefaultOrigin is used when a request carries no usable origin
const DefaultOrigin = "https://kctmenswear.com"

// BuildRedirectURLs returns the Stripe success and cancel URLs for origin.
// Stripe replaces {CHECKOUT_SESSION_ID} with the session ID.
func BuildRedirectURLs(origin string) (success, cancel string) {
	origin = strings.TrimRight(origin, "/")
	return origin + "/order-success?session_id={CHECKOUT_SESSION_ID}", origin + "/cart"
}

// HostAllowlist validates redirect URLs against allowed hosts.
// An entry matches its exact host[:port] and any subdomain of it.
type HostAllowlist []string

// Allows reports whether raw is an allowed redirect URL. Localhost must use
// http and every other host must use https.
func (a HostAllowlist) Allows(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" {
		if u.Scheme != "http" {
			return false
		}
	} else if u.Scheme != "https" {
		return false
	}

	hostPort := strings.ToLower(u.Host)
	for _, entry := range a {
		entry = strings.ToLower(entry)
		if strings.Contains(entry, ":") {
			if hostPort == entry {
				return true
			}
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

// Validate returns raw when allowed, or an INVALID_URL error naming field
func (a HostAllowlist) Validate(raw, field string) (string, error) {
	if !a.Allows(raw) {
		return "", shared.NewDomainError("INVALID_URL", "Invalid "+field+" URL")
	}
	return raw, nil
}
