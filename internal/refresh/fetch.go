package refresh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// maxPriceListSize ограничивает размер скачиваемого прайса.
const maxPriceListSize = 32 << 20

type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPFetcher скачивает прайс поставщика. Сетевые ошибки, 429 и 5xx
// повторяются с экспоненциальной паузой.
type HTTPFetcher struct {
	client  *http.Client
	url     string
	retries uint64
	backoff time.Duration
}

func NewHTTPFetcher(client *http.Client, url string, retries uint64, backoff time.Duration) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &HTTPFetcher{client: client, url: url, retries: retries, backoff: backoff}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if f.url == "" {
		return nil, fmt.Errorf("price list url is not configured")
	}

	var body []byte
	b := retry.WithMaxRetries(f.retries, retry.NewExponential(f.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("unexpected status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxPriceListSize+1))
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read body: %w", err))
		}
		if len(data) > maxPriceListSize {
			return fmt.Errorf("price list is larger than %d bytes", maxPriceListSize)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
