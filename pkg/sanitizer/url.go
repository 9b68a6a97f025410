package sanitizer

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	reScheme = regexp.MustCompile(`^[a-z][a-z0-9+.\-]*://`)
	rePort   = regexp.MustCompile(`:\d*$`)
)

// NormalizeHost reduces a website to its lower-cased hostname without a
// leading "www.". Input that does not parse as an absolute URL is handled by
// stripping the scheme and "www." textually, keeping everything before the
// first "/", "?" or "#", and dropping a trailing port.
func NormalizeHost(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
		return stripWWW(strings.ToLower(u.Hostname()))
	}

	s = strings.ToLower(s)
	s = reScheme.ReplaceAllString(s, "")
	s = stripWWW(s)
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	s = rePort.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func stripWWW(host string) string {
	if after, ok := strings.CutPrefix(host, "www."); ok {
		return after
	}
	return host
}

// HostVariants returns host followed by each parent domain down to the
// registrable domain, e.g. "shop.eu.acme.co.uk" yields
// ["shop.eu.acme.co.uk", "eu.acme.co.uk", "acme.co.uk"]. Hosts without a
// known public suffix yield only themselves.
func HostVariants(host string) []string {
	if host == "" {
		return nil
	}

	variants := []string{host}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || registrable == host || !strings.HasSuffix(host, "."+registrable) {
		return variants
	}

	for h := host; h != registrable; {
		_, parent, found := strings.Cut(h, ".")
		if !found {
			break
		}
		h = parent
		variants = append(variants, h)
	}
	return variants
}
