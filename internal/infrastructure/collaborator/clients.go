// Package collaborator holds the read-only HTTP clients for the item and
// user services. Both are consulted, never mutated, by this core.
package collaborator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
)

// internalHeader marks service-to-service traffic for the gateway.
const internalHeader = "X-Internal-Service"

type HTTPItemClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPItemClient(baseURL string, timeout time.Duration) *HTTPItemClient {
	return &HTTPItemClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// SellerOf resolves the owner of an item. A 404 means the item does not
// exist; any other failure is a collaborator outage.
func (c *HTTPItemClient) SellerOf(ctx context.Context, itemID int64) (int64, error) {
	endpoint := fmt.Sprintf("%s/items/%d", c.baseURL, itemID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, domain.ErrCollaboratorUnavailable(err)
	}
	req.Header.Set(internalHeader, "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, domain.ErrCollaboratorUnavailable(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, domain.ErrItemNotFound()
	case resp.StatusCode != http.StatusOK:
		return 0, domain.ErrCollaboratorUnavailable(fmt.Errorf("item service returned %d", resp.StatusCode))
	}

	var body struct {
		SellerID int64 `json:"seller_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, domain.ErrCollaboratorUnavailable(err)
	}
	return body.SellerID, nil
}

type HTTPUserClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPUserClient(baseURL string, timeout time.Duration) *HTTPUserClient {
	return &HTTPUserClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FindByEmail looks a user up by email. Unknown emails are not an error;
// invitation fan-out just skips them.
func (c *HTTPUserClient) FindByEmail(ctx context.Context, email string) (int64, bool, error) {
	endpoint := fmt.Sprintf("%s/users/find_user/%s", c.baseURL, url.PathEscape(email))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, false, domain.ErrCollaboratorUnavailable(err)
	}
	req.Header.Set(internalHeader, "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, false, domain.ErrCollaboratorUnavailable(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, false, nil
	case resp.StatusCode != http.StatusOK:
		return 0, false, domain.ErrCollaboratorUnavailable(fmt.Errorf("user service returned %d", resp.StatusCode))
	}

	var body struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false, domain.ErrCollaboratorUnavailable(err)
	}
	return body.UserID, true, nil
}
