package c8y

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CreateManagedObject creates an inventory object and returns it with the
// backend-assigned id.
func (c *Client) CreateManagedObject(ctx context.Context, tenantID string, mo ManagedObject) (ManagedObject, error) {
	var created ManagedObject
	err := c.doJSON(ctx, tenantID, http.MethodPost, "/inventory/managedObjects", mo, &created)
	if err != nil {
		return ManagedObject{}, err
	}
	return created, nil
}

// GetManagedObject fetches an inventory object by id.
//
// Returns ErrNotFound if the object does not exist.
func (c *Client) GetManagedObject(ctx context.Context, tenantID, id string) (ManagedObject, error) {
	if id == "" {
		return ManagedObject{}, fmt.Errorf("%w: managed object id is required", ErrInvalidInput)
	}

	var mo ManagedObject
	err := c.doJSON(ctx, tenantID, http.MethodGet,
		"/inventory/managedObjects/"+url.PathEscape(id), nil, &mo)
	if err != nil {
		return ManagedObject{}, err
	}
	return mo, nil
}

// UpdateManagedObject applies a partial update to an inventory object.
// Only the non-zero fields of mo are sent.
func (c *Client) UpdateManagedObject(ctx context.Context, tenantID, id string, mo ManagedObject) (ManagedObject, error) {
	if id == "" {
		return ManagedObject{}, fmt.Errorf("%w: managed object id is required", ErrInvalidInput)
	}

	// The id travels in the path, not the body.
	mo.ID = ""

	var updated ManagedObject
	err := c.doJSON(ctx, tenantID, http.MethodPut,
		"/inventory/managedObjects/"+url.PathEscape(id), mo, &updated)
	if err != nil {
		return ManagedObject{}, err
	}
	return updated, nil
}

// AddChildDevice links a child device beneath a parent managed object.
//
// Re-adding an existing child is accepted by the backend, so callers can
// repair the hierarchy unconditionally.
func (c *Client) AddChildDevice(ctx context.Context, tenantID, parentID, childID string) error {
	if parentID == "" || childID == "" {
		return fmt.Errorf("%w: parent and child ids are required", ErrInvalidInput)
	}

	ref := Reference{ManagedObject: Source{ID: childID}}
	return c.doJSON(ctx, tenantID, http.MethodPost,
		"/inventory/managedObjects/"+url.PathEscape(parentID)+"/childDevices", ref, nil)
}

// HasChildDevice reports whether childID is already linked beneath
// parentID.
func (c *Client) HasChildDevice(ctx context.Context, tenantID, parentID, childID string) (bool, error) {
	parent, err := c.GetManagedObject(ctx, tenantID, parentID)
	if err != nil {
		return false, err
	}
	if parent.ChildDevices == nil {
		return false, nil
	}
	for _, ref := range parent.ChildDevices.References {
		if ref.ManagedObject.ID == childID {
			return true, nil
		}
	}
	return false, nil
}

// managedObjectCollection is the paged response shape for inventory
// queries.
type managedObjectCollection struct {
	ManagedObjects []ManagedObject `json:"managedObjects"`
}

// FindManagedObjectsByType lists inventory objects of the given type.
func (c *Client) FindManagedObjectsByType(ctx context.Context, tenantID, moType string) ([]ManagedObject, error) {
	if moType == "" {
		return nil, fmt.Errorf("%w: type is required", ErrInvalidInput)
	}

	var page managedObjectCollection
	path := "/inventory/managedObjects?type=" + url.QueryEscape(moType) + "&pageSize=100"
	if err := c.doJSON(ctx, tenantID, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return page.ManagedObjects, nil
}
