package block

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/epsil/linkgrab/internal/storage"
)

// Detector examines a fetch record to determine if the target served a
// challenge or block page instead of real results.
type Detector func(rec *storage.FetchRecord) (detected bool, source string)

// DefaultDetectors returns the standard list of block-page detectors for the
// endpoints this tool talks to.
func DefaultDetectors() []Detector {
	return []Detector{
		detectAmazonRobotCheck,
		detectCloudflare,
		detectGenericCaptcha,
	}
}

// Analyze runs the record through all provided detectors. It updates the record
// in place with the detection status and returns true if any detection triggered.
func Analyze(rec *storage.FetchRecord, detectors []Detector) bool {
	if rec == nil {
		return false
	}
	for _, d := range detectors {
		if detected, source := d(rec); detected {
			rec.Blocked = true
			rec.BlockSrc = source
			return true
		}
	}
	rec.Blocked = false
	rec.BlockSrc = ""
	return false
}

func getHeader(headers map[string][]string, key string) string {
	if vals, ok := headers[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	// Case-insensitive fallback
	lowerKey := strings.ToLower(key)
	for k, vals := range headers {
		if strings.ToLower(k) == lowerKey && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// detectAmazonRobotCheck looks for Amazon's rate-limit interstitial. Amazon
// serves it with a 200 or 503, so the body signatures are what matters; a page
// like this has no results container and would otherwise read as "no match".
func detectAmazonRobotCheck(rec *storage.FetchRecord) (bool, string) {
	if bytes.Contains(rec.Body, []byte("To discuss automated access to Amazon data")) ||
		bytes.Contains(rec.Body, []byte("Robot Check")) ||
		bytes.Contains(rec.Body, []byte("/errors/validateCaptcha")) {
		return true, "AmazonRobotCheck"
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(rec *storage.FetchRecord) (bool, string) {
	// Status codes 403 or 503 are common for CF challenges
	if rec.StatusCode == http.StatusForbidden || rec.StatusCode == http.StatusServiceUnavailable {
		server := strings.ToLower(getHeader(rec.Headers, "Server"))
		if strings.Contains(server, "cloudflare") {
			return true, "Cloudflare"
		}

		if bytes.Contains(rec.Body, []byte("cf-browser-verification")) ||
			bytes.Contains(rec.Body, []byte("cf-turnstile")) ||
			bytes.Contains(rec.Body, []byte("Attention Required! | Cloudflare")) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

// detectGenericCaptcha catches captcha walls that mirror hosts occasionally
// front their download pages with.
func detectGenericCaptcha(rec *storage.FetchRecord) (bool, string) {
	if rec.StatusCode == http.StatusForbidden || rec.StatusCode == http.StatusTooManyRequests {
		if bytes.Contains(rec.Body, []byte("g-recaptcha")) ||
			bytes.Contains(rec.Body, []byte("hcaptcha")) {
			return true, "Captcha"
		}
	}
	return false, ""
}
