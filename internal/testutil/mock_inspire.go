// Package testutil provides testing utilities for the INSPIRE harvester.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SearchPath is the path served by the mock search endpoint.
const SearchPath = "/search"

// Author is one HepNames entry served by the mock.
// Empty fields are left out of the generated record.
type Author struct {
	ControlNumber string
	InspireID     string
	BAI           string
}

// MockResponse defines a canned response that preempts record serving.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockInspire is a configurable mock INSPIRE search server.
type MockInspire struct {
	server *httptest.Server
	mu     sync.Mutex

	authors []Author
	// queued responses are consumed one per request before serving records
	queued []MockResponse
	// pageOverrides replace the body for a given jrec offset
	pageOverrides map[int]string

	// Tracking
	RequestCount int
	Offsets      []int
	LastQuery    url.Values
	LastHeader   http.Header
}

// NewMockInspire creates a mock server serving the given authors.
func NewMockInspire(authors ...Author) *MockInspire {
	mock := &MockInspire{
		authors:       authors,
		pageOverrides: make(map[int]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockInspire) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockInspire) Close() {
	m.server.Close()
}

// Queue appends canned responses returned, in order, by the next requests.
func (m *MockInspire) Queue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, responses...)
}

// SetPage overrides the body served for the page starting at offset.
func (m *MockInspire) SetPage(offset int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageOverrides[offset] = body
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockInspire) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetOffsets returns the jrec offsets requested so far.
func (m *MockInspire) GetOffsets() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.Offsets...)
}

// GetLastQuery returns the query of the most recent request.
func (m *MockInspire) GetLastQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastQuery
}

// GetLastHeader returns the headers of the most recent request.
func (m *MockInspire) GetLastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastHeader
}

func (m *MockInspire) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != SearchPath {
		http.NotFound(w, r)
		return
	}

	query := r.URL.Query()
	offset, _ := strconv.Atoi(query.Get("jrec"))
	size, _ := strconv.Atoi(query.Get("rg"))

	m.mu.Lock()
	m.RequestCount++
	m.Offsets = append(m.Offsets, offset)
	m.LastQuery = query
	m.LastHeader = r.Header.Clone()

	var canned *MockResponse
	if len(m.queued) > 0 {
		canned = &m.queued[0]
		m.queued = m.queued[1:]
	}
	override, hasOverride := m.pageOverrides[offset]
	authors := m.page(offset, size)
	m.mu.Unlock()

	if canned != nil {
		if canned.Delay > 0 {
			time.Sleep(canned.Delay)
		}
		for key, value := range canned.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(canned.StatusCode)
		if canned.Body != "" {
			w.Write([]byte(canned.Body))
		}
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if hasOverride {
		w.Write([]byte(override))
		return
	}
	w.Write([]byte(Collection(authors...)))
}

// page returns the authors for a 1-based offset. Callers hold m.mu.
func (m *MockInspire) page(offset, size int) []Author {
	if offset < 1 || size < 1 || offset > len(m.authors) {
		return nil
	}
	end := offset - 1 + size
	if end > len(m.authors) {
		end = len(m.authors)
	}
	return m.authors[offset-1 : end]
}

// Collection renders authors as a MARC21-slim collection document.
func Collection(authors ...Author) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<collection xmlns="http://www.loc.gov/MARC21/slim">` + "\n")
	for _, a := range authors {
		b.WriteString(Record(a))
	}
	b.WriteString(`</collection>`)
	return b.String()
}

// Record renders a single author as a MARC21-slim record element.
func Record(a Author) string {
	var b strings.Builder
	b.WriteString("<record>\n")
	if a.ControlNumber != "" {
		fmt.Fprintf(&b, "  <controlfield tag=\"001\">%s</controlfield>\n", a.ControlNumber)
	}
	if a.InspireID != "" {
		fmt.Fprintf(&b, "  <datafield tag=\"035\" ind1=\" \" ind2=\" \"><subfield code=\"9\">INSPIRE</subfield><subfield code=\"a\">%s</subfield></datafield>\n", a.InspireID)
	}
	if a.BAI != "" {
		fmt.Fprintf(&b, "  <datafield tag=\"035\" ind1=\" \" ind2=\" \"><subfield code=\"9\">BAI</subfield><subfield code=\"a\">%s</subfield></datafield>\n", a.BAI)
	}
	b.WriteString("</record>\n")
	return b.String()
}

// Authors generates n complete authors with sequential identifiers.
func Authors(n int) []Author {
	out := make([]Author, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Author{
			ControlNumber: strconv.Itoa(1000000 + i),
			InspireID:     fmt.Sprintf("INSPIRE-%08d", i),
			BAI:           fmt.Sprintf("A.Author.%d", i),
		})
	}
	return out
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
	}
}

// NewRateLimitResponse creates a 429 response with a Retry-After header.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       "Too Many Requests",
		Headers: map[string]string{
			"Retry-After": strconv.Itoa(retryAfterSeconds),
		},
	}
}

// NewClientErrorResponse creates a 400 Bad Request response.
func NewClientErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       "Bad Request",
	}
}
