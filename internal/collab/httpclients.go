package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClients bundles the JSON clients for the address, catalog and cart
// services behind the collab ports.
type HTTPClients struct {
	AddressBook AddressBook
	Catalog     Catalog
	Cart        Cart
}

func NewHTTPClients(addressURL, catalogURL, cartURL string, timeout time.Duration) HTTPClients {
	client := &http.Client{Timeout: timeout}
	return HTTPClients{
		AddressBook: &httpAddressBook{baseURL: addressURL, client: client},
		Catalog:     &httpCatalog{baseURL: catalogURL, client: client},
		Cart:        &httpCart{baseURL: cartURL, client: client},
	}
}

type httpAddressBook struct {
	baseURL string
	client  *http.Client
}

func (a *httpAddressBook) Resolve(ctx context.Context, userID, addressID int64) (Address, error) {
	url := fmt.Sprintf("%s/users/%d/addresses/%d", a.baseURL, userID, addressID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Address{}, fmt.Errorf("build address request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Address{}, fmt.Errorf("resolve address: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Address{}, ErrAddressNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Address{}, fmt.Errorf("resolve address: unexpected status %d", resp.StatusCode)
	}

	var addr Address
	if err := json.NewDecoder(resp.Body).Decode(&addr); err != nil {
		return Address{}, fmt.Errorf("decode address: %w", err)
	}

	return addr, nil
}

type httpCatalog struct {
	baseURL string
	client  *http.Client
}

func (c *httpCatalog) BatchGetPricedProducts(ctx context.Context, ids []int64) (map[int64]PricedProduct, error) {
	body, err := json.Marshal(map[string][]int64{"product_ids": ids})
	if err != nil {
		return nil, fmt.Errorf("encode product ids: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/products/batch-get", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch get products: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("batch get products: unexpected status %d", resp.StatusCode)
	}

	var products []PricedProduct
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	out := make(map[int64]PricedProduct, len(products))
	for _, p := range products {
		out[p.ProductID] = p
	}

	return out, nil
}

type httpCart struct {
	baseURL string
	client  *http.Client
}

func (c *httpCart) RemoveLines(ctx context.Context, userID int64, productIDs []int64) error {
	body, err := json.Marshal(map[string]any{
		"user_id":     userID,
		"product_ids": productIDs,
	})
	if err != nil {
		return fmt.Errorf("encode cart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/cart/remove-lines", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build cart request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remove cart lines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remove cart lines: unexpected status %d", resp.StatusCode)
	}

	return nil
}
