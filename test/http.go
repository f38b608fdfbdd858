// Package test provides canned HTTP fixtures for bootstrap loader
// tests: register a named set of (status, url, body) responders
// against httpmock, run the test, then deactivate. Fixture bodies are
// small inline RPSL snippets rather than files on disk, since the
// datasets here are short enough not to need their own directory.
package test

import (
	"io"
	"log"
	"net/http"

	"github.com/jarcoal/httpmock"
)

type Dataset int

const (
	// RipeSmallDump is a minimal, valid serial+dump pair: one as-set
	// and one route, enough to exercise the full bootstrap pipeline.
	RipeSmallDump Dataset = iota

	// RipeHTTPError serves 404s for both serial and dump URLs.
	RipeHTTPError

	// RipeBadSerial serves an unparseable serial body.
	RipeBadSerial
)

type response struct {
	Status int
	URL    string
	Body   string
}

var responses map[Dataset][]response
var activatedURLs map[string]bool

// Start activates httpmock and registers a dataset's responders.
func Start(set Dataset) {
	httpmock.Activate()

	for _, r := range responses[set] {
		if _, ok := activatedURLs[r.URL]; ok {
			log.Panicf("test sets conflict on URL %s\n", r.URL)
		}
		activatedURLs[r.URL] = true

		httpmock.RegisterResponder("GET", r.URL,
			httpmock.NewStringResponder(r.Status, r.Body))
	}
}

// Finish deactivates httpmock and clears registered URLs.
func Finish() {
	activatedURLs = make(map[string]bool)
	httpmock.DeactivateAndReset()
}

// Get performs a GET and returns the body, panicking on any failure
// (test helper, not production code).
func Get(url string) []byte {
	resp, err := http.Get(url)
	if err != nil {
		log.Panic(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Panic(err)
	}
	return data
}

func init() {
	responses = make(map[Dataset][]response)
	activatedURLs = make(map[string]bool)
	loadDatasets()
}

func loadDatasets() {
	dump := "as-set: AS-FOO\n" +
		"members: AS1\n" +
		"\n" +
		"route: 10.0.0.0/8\n" +
		"origin: AS1\n" +
		"\n"

	add(RipeSmallDump, 200, "https://mirror.example/ripe.serial", "42\n")
	add(RipeSmallDump, 200, "https://mirror.example/ripe.dump", dump)

	add(RipeHTTPError, 404, "https://mirror.example/ripe.serial", "not found")
	add(RipeHTTPError, 404, "https://mirror.example/ripe.dump", "not found")

	add(RipeBadSerial, 200, "https://mirror.example/ripe.serial", "not-a-number")
}

func add(set Dataset, status int, url string, body string) {
	responses[set] = append(responses[set], response{status, url, body})
}
