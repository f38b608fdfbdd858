package registry

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	ircache "github.com/bcix/tinyirrdbcache"
)

// httpGetter is satisfied by *http.Client; tests substitute httpmock's
// transport on a real client, or a fake implementation, rather than
// faking the whole client.
type httpGetter interface {
	Get(url string) (*http.Response, error)
}

// Bootstrap fetches a registry's current serial and full dump, and
// returns a freshly populated index. It never buffers the dump in
// memory: the response body is streamed straight through a line
// splitter and the object parser.
func Bootstrap(client httpGetter, cfg Config, obs ircache.Observer) (*ircache.Index, error) {
	serial, err := fetchSerial(client, cfg.SerialURL)
	if err != nil {
		return nil, fmt.Errorf("registry %s: fetching serial: %w", cfg.ShortName, err)
	}

	idx := ircache.NewIndex(serial)

	resp, err := client.Get(cfg.DumpURL)
	if err != nil {
		return nil, fmt.Errorf("registry %s: fetching dump: %w", cfg.ShortName, err)
	}
	defer resp.Body.Close()

	body := resp.Body
	var r io.Reader = body
	if strings.HasSuffix(cfg.DumpURL, ".gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("registry %s: opening gzip dump: %w", cfg.ShortName, err)
		}
		defer gz.Close()
		r = gz
	}

	if err := ingestDump(idx, r, obs); err != nil {
		return nil, fmt.Errorf("registry %s: reading dump: %w", cfg.ShortName, err)
	}

	return idx, nil
}

func fetchSerial(client httpGetter, url string) (uint32, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseUint(strings.TrimSpace(string(text)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unparseable serial %q: %w", text, err)
	}
	return uint32(n), nil
}

// ingestDump splits r into RPSL objects on blank lines, feeding each
// one through ircache.ParseObject and applying it to idx. The
// scanner's per-line nature bounds memory to one object's worth of
// lines at a time, not the whole dump.
func ingestDump(idx *ircache.Index, r io.Reader, obs ircache.Observer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		obj := ircache.ParseObject(current, obs)
		idx.Apply(obj, false, obs)
		current = current[:0]
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return scanner.Err()
}
