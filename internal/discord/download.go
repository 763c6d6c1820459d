package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Download загружает файл CDN без авторизации. maxSize <= 0 снимает ограничение.
func (c *Client) Download(ctx context.Context, url string, maxSize int64) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	started := c.clock()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	c.metrics.observe("download", resp.StatusCode, c.clock().Sub(started))

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: "download " + url}
	}
	if maxSize > 0 && resp.ContentLength > maxSize {
		return nil, fmt.Errorf("%s (%d bytes): %w", url, resp.ContentLength, ErrAssetTooLarge)
	}

	reader := io.Reader(resp.Body)
	if maxSize > 0 {
		reader = io.LimitReader(resp.Body, maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%s: %w", url, ErrAssetTooLarge)
	}
	return data, nil
}
