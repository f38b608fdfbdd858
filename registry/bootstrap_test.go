package registry

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"testing"

	"github.com/bcix/tinyirrdbcache/test"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapParsesDumpIntoIndex(t *testing.T) {
	test.Start(test.RipeSmallDump)
	defer test.Finish()

	cfg := Config{
		ShortName: "ripe",
		SerialURL: "https://mirror.example/ripe.serial",
		DumpURL:   "https://mirror.example/ripe.dump",
	}

	idx, err := Bootstrap(http.DefaultClient, cfg, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 42, idx.Serial())
	members, ok := idx.LookupMacro("AS-FOO")
	require.True(t, ok)
	assert.Equal(t, []string{"AS1"}, members)
	assert.Len(t, idx.PrefixesV4(1), 1)
}

func TestBootstrapDecompressesGzipDump(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://mirror.example/ripe.serial",
		httpmock.NewStringResponder(200, "7"))

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("route: 10.0.0.0/8\norigin: AS5\n\n"))
	gz.Close()

	httpmock.RegisterResponder("GET", "https://mirror.example/ripe.dump.gz",
		httpmock.NewBytesResponder(200, buf.Bytes()))

	cfg := Config{
		ShortName: "ripe",
		SerialURL: "https://mirror.example/ripe.serial",
		DumpURL:   "https://mirror.example/ripe.dump.gz",
	}

	idx, err := Bootstrap(http.DefaultClient, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, idx.PrefixesV4(5), 1)
}

func TestBootstrapFailsOnUnparseableSerial(t *testing.T) {
	test.Start(test.RipeBadSerial)
	defer test.Finish()

	cfg := Config{ShortName: "ripe", SerialURL: "https://mirror.example/ripe.serial"}

	_, err := Bootstrap(http.DefaultClient, cfg, nil)
	assert.Error(t, err)
}

func TestBootstrapFailsOnHTTPError(t *testing.T) {
	test.Start(test.RipeHTTPError)
	defer test.Finish()

	cfg := Config{
		ShortName: "ripe",
		SerialURL: "https://mirror.example/ripe.serial",
		DumpURL:   "https://mirror.example/ripe.dump",
	}

	// A 404 body ("not found") isn't a valid decimal serial, so
	// fetchSerial itself reports the failure.
	_, err := Bootstrap(http.DefaultClient, cfg, nil)
	assert.Error(t, err)
}
