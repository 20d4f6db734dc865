package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseCoordinates_Valid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/timezone?lat=38.897663&lng=-77.036562", nil)
	lat, lng, err := ParseCoordinates(req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if lat != 38.897663 || lng != -77.036562 {
		t.Fatalf("got %v,%v", lat, lng)
	}
}

func TestParseCoordinates_LonAlias(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/timezone?lat=1&lon=2", nil)
	if _, lng, err := ParseCoordinates(req); err != nil || lng != 2 {
		t.Fatalf("lng=%v err=%v", lng, err)
	}
}

func TestParseCoordinates_Invalid(t *testing.T) {
	for _, q := range []string{
		"",
		"lat=1",
		"lat=abc&lng=1",
		"lat=1&lng=NaN",
		"lat=91&lng=0",
		"lat=0&lng=-180.5",
		"lat=Inf&lng=0",
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/timezone?"+q, nil)
		if _, _, err := ParseCoordinates(req); err == nil {
			t.Fatalf("%q: expected error", q)
		}
	}
}
