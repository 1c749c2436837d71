//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 5 {
		t.Fatalf("expected 5 products, got %d", len(products))
	}

	byName := make(map[string]productResponse, len(products))
	for _, p := range products {
		if p.ID == "" {
			t.Errorf("product %q has empty id", p.Name)
		}
		byName[p.Name] = p
	}

	pizza, ok := byName["Pizza margarita"]
	if !ok {
		t.Fatal("Pizza margarita not in catalog")
	}
	if pizza.Price != 8.50 {
		t.Errorf("pizza price: got %v, want 8.50", pizza.Price)
	}
	if pizza.Category != "plato" {
		t.Errorf("pizza category: got %q, want plato", pizza.Category)
	}
	if !pizza.Available {
		t.Error("pizza should be available")
	}

	// The seed data includes one delisted product; it still shows up in the
	// listing with available=false.
	agua, ok := byName["Agua con gas"]
	if !ok {
		t.Fatal("Agua con gas not in catalog")
	}
	if agua.Available {
		t.Error("Agua con gas should be unavailable")
	}
}

func TestListProducts_MethodNotAllowed(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/products", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
