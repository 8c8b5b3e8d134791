package assemble

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"lab47.dev/gitsmith/pkg/fetch"
)

const DefaultCABundleURL = "https://curl.se/ca/cacert.pem"

// CABundle adds the trust material the bundled binaries verify TLS
// against. The bundle is a convenience addition: a failed download is
// reported as a warning by the pipeline, never as a run failure. The
// checksum-gated LFS merge above is the deliberate opposite.
type CABundle struct {
	L hclog.Logger

	Fetcher     *fetch.Fetcher
	URL         string
	Destination string
}

func (c *CABundle) Add(ctx context.Context) error {
	if c.L == nil {
		c.L = hclog.L()
	}

	url := c.URL
	if url == "" {
		url = DefaultCABundleURL
	}

	dest := filepath.Join(c.Destination, "ssl", "cacert.pem")

	err := c.Fetcher.Download(ctx, url, dest)
	if err != nil {
		return err
	}

	c.L.Info("added CA bundle", "path", dest)

	return nil
}
