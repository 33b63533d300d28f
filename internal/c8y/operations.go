package c8y

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// operationCollection is the paged response shape for operation queries.
type operationCollection struct {
	Operations []Operation `json:"operations"`
}

// ListOperations returns operations addressed to an agent in the given
// status, oldest first.
//
// Parameters:
//   - tenantID: The tenant to query
//   - agentID: The agent managed object the operations are addressed to
//   - status: The lifecycle state to filter on
//
// Returns:
//   - []Operation: Matching operations; empty slice when none
//   - error: If the query fails
func (c *Client) ListOperations(ctx context.Context, tenantID, agentID string, status OperationStatus) ([]Operation, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent id is required", ErrInvalidInput)
	}

	path := fmt.Sprintf("/devicecontrol/operations?agentId=%s&status=%s&pageSize=100",
		url.QueryEscape(agentID), url.QueryEscape(string(status)))

	var page operationCollection
	if err := c.doJSON(ctx, tenantID, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return page.Operations, nil
}

// GetOperation fetches a single operation by id.
func (c *Client) GetOperation(ctx context.Context, tenantID, id string) (Operation, error) {
	if id == "" {
		return Operation{}, fmt.Errorf("%w: operation id is required", ErrInvalidInput)
	}

	var op Operation
	err := c.doJSON(ctx, tenantID, http.MethodGet,
		"/devicecontrol/operations/"+url.PathEscape(id), nil, &op)
	if err != nil {
		return Operation{}, err
	}
	return op, nil
}

// UpdateOperationStatus transitions an operation to a new lifecycle
// state. failureReason is only sent for FAILED transitions.
func (c *Client) UpdateOperationStatus(ctx context.Context, tenantID, id string, status OperationStatus, failureReason string) error {
	if id == "" {
		return fmt.Errorf("%w: operation id is required", ErrInvalidInput)
	}

	body := struct {
		Status        OperationStatus `json:"status"`
		FailureReason string          `json:"failureReason,omitempty"`
	}{Status: status}
	if status == StatusFailed {
		body.FailureReason = failureReason
	}

	return c.doJSON(ctx, tenantID, http.MethodPut,
		"/devicecontrol/operations/"+url.PathEscape(id), body, nil)
}
