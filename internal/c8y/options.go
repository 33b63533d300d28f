package c8y

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// GetTenantOptions returns all key/value options in a category for a
// tenant. An empty category on the backend yields an empty map, not an
// error.
//
// Parameters:
//   - tenantID: The tenant whose options to read
//   - category: The option category, e.g. "hono"
//
// Returns:
//   - map[string]string: Option values keyed by option key
//   - error: If the query fails
func (c *Client) GetTenantOptions(ctx context.Context, tenantID, category string) (map[string]string, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: option category is required", ErrInvalidInput)
	}

	var out map[string]string
	path := "/tenant/options/" + url.PathEscape(category)
	err := c.doJSON(ctx, tenantID, http.MethodGet, path, nil, &out)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

// GetTenantOption returns one option value.
//
// Returns ErrNotFound when the option is not set.
func (c *Client) GetTenantOption(ctx context.Context, tenantID, category, key string) (string, error) {
	if category == "" || key == "" {
		return "", fmt.Errorf("%w: option category and key are required", ErrInvalidInput)
	}

	var opt TenantOption
	path := "/tenant/options/" + url.PathEscape(category) + "/" + url.PathEscape(key)
	if err := c.doJSON(ctx, tenantID, http.MethodGet, path, nil, &opt); err != nil {
		return "", err
	}
	return opt.Value, nil
}
