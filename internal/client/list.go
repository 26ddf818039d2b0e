package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
)

// maxPages bounds page following against a server that never ends.
var maxPages = 1000

// ErrTooManyPages is returned when a list still reports more pages after
// maxPages requests.
var ErrTooManyPages = errors.New("too many pages")

// list GETs path and decodes an array or page envelope. With all set it
// keeps requesting the following pages until the server reports none.
func list[T any](ctx context.Context, c *Client, path string, query url.Values, all bool) ([]T, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	out := []T{}
	for n := 0; n < maxPages; n++ {
		if page > 1 {
			q.Set("page", strconv.Itoa(page))
		}
		p, err := fetchPage[T](ctx, c, path, q)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Results...)
		if !all || !p.HasNext() {
			return out, nil
		}
		page++
	}
	return nil, fmt.Errorf("list %s: stopped after %d pages: %w", path, maxPages, ErrTooManyPages)
}

func fetchPage[T any](ctx context.Context, c *Client, path string, q url.Values) (*model.Page[T], error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return model.DecodePage[T](data)
}
