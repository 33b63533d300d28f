package c8y

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// GetExternalID resolves an external identity to its managed object.
//
// Returns ErrNotFound if no object carries the identity.
func (c *Client) GetExternalID(ctx context.Context, tenantID, idType, externalID string) (ExternalID, error) {
	if idType == "" || externalID == "" {
		return ExternalID{}, fmt.Errorf("%w: identity type and value are required", ErrInvalidInput)
	}

	var out ExternalID
	path := "/identity/externalIds/" + url.PathEscape(idType) + "/" + url.PathEscape(externalID)
	if err := c.doJSON(ctx, tenantID, http.MethodGet, path, nil, &out); err != nil {
		return ExternalID{}, err
	}
	return out, nil
}

// externalIDCollection is the response shape for identity listings.
type externalIDCollection struct {
	ExternalIDs []ExternalID `json:"externalIds"`
}

// ListExternalIDs returns all external identities registered for a
// managed object.
func (c *Client) ListExternalIDs(ctx context.Context, tenantID, moID string) ([]ExternalID, error) {
	if moID == "" {
		return nil, fmt.Errorf("%w: managed object id is required", ErrInvalidInput)
	}

	var page externalIDCollection
	path := "/identity/globalIds/" + url.PathEscape(moID) + "/externalIds"
	if err := c.doJSON(ctx, tenantID, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return page.ExternalIDs, nil
}

// CreateExternalID registers an external identity for a managed object.
func (c *Client) CreateExternalID(ctx context.Context, tenantID, moID, idType, externalID string) error {
	if moID == "" || idType == "" || externalID == "" {
		return fmt.Errorf("%w: managed object id, identity type and value are required", ErrInvalidInput)
	}

	body := ExternalID{ExternalID: externalID, Type: idType}
	path := "/identity/globalIds/" + url.PathEscape(moID) + "/externalIds"
	return c.doJSON(ctx, tenantID, http.MethodPost, path, body, nil)
}
