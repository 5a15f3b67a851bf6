package hishel

import (
	"net/http"
	"strconv"
	"time"
)

// CalculateAge computes the current_age of resp per RFC 9111 section 4.2.3,
// combining the apparent age derived from the Date header with the age
// reported by any upstream cache (the Age header) and the time this cache
// itself has held the response.
func CalculateAge(resp Response, now time.Time) time.Duration {
	dateValue, ok := parseHTTPDate(resp.Header.Get("Date"))
	if !ok {
		dateValue = resp.Metadata.ResponseTime
	}

	apparentAge := resp.Metadata.ResponseTime.Sub(dateValue)
	if apparentAge < 0 {
		apparentAge = 0
	}

	responseDelay := resp.Metadata.ResponseTime.Sub(resp.Metadata.RequestTime)
	if responseDelay < 0 {
		responseDelay = 0
	}

	ageValue := parseAgeHeader(resp.Header)
	correctedAgeValue := ageValue + responseDelay
	correctedInitialAge := maxDuration(apparentAge, correctedAgeValue)

	residentTime := now.Sub(resp.Metadata.ResponseTime)
	if residentTime < 0 {
		residentTime = 0
	}

	return correctedInitialAge + residentTime
}

// parseAgeHeader reads the Age response header, defaulting to zero when
// absent or malformed.
func parseAgeHeader(h http.Header) time.Duration {
	v := h.Get("Age")
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func parseHTTPDate(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
