package hishel

import (
	"net/http"
	"testing"
)

func TestVaryHeaderNames(t *testing.T) {
	names, matchesAnything := VaryHeaderNames(Response{Header: http.Header{"Vary": {"Accept-Encoding, Accept-Language"}}})
	if matchesAnything {
		t.Fatal("expected matchesAnything false")
	}
	if len(names) != 2 || names[0] != "Accept-Encoding" || names[1] != "Accept-Language" {
		t.Errorf("unexpected names: %v", names)
	}

	_, matchesAnything = VaryHeaderNames(Response{Header: http.Header{"Vary": {"*"}}})
	if !matchesAnything {
		t.Error("expected a lone '*' to report matchesAnything")
	}

	names, matchesAnything = VaryHeaderNames(Response{Header: http.Header{}})
	if matchesAnything || len(names) != 0 {
		t.Error("expected no names and no wildcard for a response without Vary")
	}
}

func TestMatchesVary(t *testing.T) {
	stored := CompletePair{
		Pair: Pair{Request: Request{Header: http.Header{"Accept-Encoding": {"gzip"}}}},
		Response: Response{
			Header: http.Header{"Vary": {"Accept-Encoding"}},
		},
	}

	if !MatchesVary(stored, Request{Header: http.Header{"Accept-Encoding": {"gzip"}}}) {
		t.Error("expected a match when the varying header agrees")
	}
	if MatchesVary(stored, Request{Header: http.Header{"Accept-Encoding": {"br"}}}) {
		t.Error("expected no match when the varying header disagrees")
	}
	if MatchesVary(stored, Request{Header: http.Header{}}) {
		t.Error("expected no match when the varying header is absent from the candidate")
	}

	wildcard := CompletePair{Response: Response{Header: http.Header{"Vary": {"*"}}}}
	if MatchesVary(wildcard, Request{Header: http.Header{}}) {
		t.Error("expected a lone '*' Vary to never match")
	}

	noVary := CompletePair{Response: Response{Header: http.Header{}}}
	if !MatchesVary(noVary, Request{Header: http.Header{"Accept": {"anything"}}}) {
		t.Error("expected a response without Vary to match any candidate")
	}
}
