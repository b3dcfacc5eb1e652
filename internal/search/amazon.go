package search

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/epsil/linkgrab/internal/extract"
)

// amazonSearchTemplate is the keyword-search URL the lookup hits. The session
// segment is part of the endpoint shape, not per-user state.
const amazonSearchTemplate = "http://www.amazon.com/s/ref=nb_sb_noss/187-8228357-2788533?url=search-alias%%3Daps&field-keywords=%s"

// productIDPattern matches the product-identifier path segment of an Amazon
// URL, e.g. /dp/B000123ABC/.
var productIDPattern = regexp.MustCompile(`/dp/([^/]+)`)

// Amazon returns the provider for Amazon keyword search: first normal-link
// result inside the above-the-fold results container, canonicalized to the
// bare product URL.
func Amazon() Provider {
	return Provider{
		Name:        "amazon",
		URLTemplate: amazonSearchTemplate,
		Rule: extract.Rule{
			Container: "div#atfResults",
			Link:      "a.a-link-normal",
		},
		Normalize: NormalizeProductURL,
	}
}

// NormalizeProductURL strips tracking decoration from a product URL, keeping
// only the canonical /dp/<id>/ form on the original host. URLs without a
// product-id segment are returned unchanged.
func NormalizeProductURL(rawURL string) string {
	match := productIDPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("http://www.amazon.com/dp/%s/", match[1])
	}
	return fmt.Sprintf("%s://%s/dp/%s/", u.Scheme, u.Host, match[1])
}
