package dataset

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glassbox-ml/glassbox/pkg/errors"
	"github.com/glassbox-ml/glassbox/pkg/log"
)

const (
	fetchTimeout = 60 * time.Second
	maxIdleConns = 10
	userAgent    = "glassbox-dataset/1.0"
)

// ErrNotFound reports a dataset URL that answered HTTP 404.
var ErrNotFound = errors.New("glassbox: dataset not found")

var httpClient = &http.Client{
	Timeout: fetchTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     fetchTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// FetchCSV downloads a CSV dataset and parses it into a Table. Non-2xx
// responses are errors; a 404 wraps ErrNotFound.
func FetchCSV(ctx context.Context, url string, opts ...ParseOption) (*Table, error) {
	logger := log.GetLoggerWithName("dataset")
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "glassbox: building request for %s", url)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "glassbox: fetching %s", url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(ErrNotFound, "%s", url)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Newf("glassbox: fetching %s: unexpected status %s", url, resp.Status)
	}

	table, err := ParseCSV(resp.Body, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "glassbox: parsing %s", url)
	}

	logger.Info("dataset fetched",
		log.DatasetURLKey, url,
		log.SamplesKey, table.NumRows(),
		log.FeaturesKey, table.NumCols(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return table, nil
}

// FetchAll downloads several CSV datasets concurrently. The result order
// matches the URL order; the first failure cancels the remaining fetches.
func FetchAll(ctx context.Context, urls ...string) ([]*Table, error) {
	if len(urls) == 0 {
		return nil, errors.NewValueError("FetchAll", "no URLs given")
	}

	g, ctx := errgroup.WithContext(ctx)
	tables := make([]*Table, len(urls))

	for i, url := range urls {
		g.Go(func() error {
			t, err := FetchCSV(ctx, url)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return tables, nil
}
