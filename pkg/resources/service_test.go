package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/shopify-connector/internal/testutil"
	"github.com/Sternrassler/shopify-connector/pkg/client"
	"github.com/Sternrassler/shopify-connector/pkg/pagination"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
	"github.com/rs/zerolog"
)

const testShop = "demo.myshopify.com"

// fakeExecutor answers with canned data objects in order.
type fakeExecutor struct {
	data      []string
	err       error
	calls     int
	variables []map[string]any
}

func (f *fakeExecutor) Execute(_ context.Context, _, _, _ string, variables map[string]any, state ratelimit.State) (*client.Response, ratelimit.State, error) {
	f.calls++
	f.variables = append(f.variables, variables)
	next := state
	next.Available = 900

	if f.err != nil {
		return nil, next, f.err
	}
	data := f.data[0]
	f.data = f.data[1:]
	return &client.Response{Data: json.RawMessage(data)}, next, nil
}

func newMockService(t *testing.T, mock *testutil.MockShopify) *Service {
	t.Helper()

	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.URL()
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	c.SetLogger(zerolog.Nop())
	return NewService(c, zerolog.Nop())
}

func TestProductVariants_ProductNotFound(t *testing.T) {
	exec := &fakeExecutor{data: []string{`{"product":null}`}}
	svc := NewService(exec, zerolog.Nop())

	page, next, err := svc.ProductVariants(context.Background(), testShop, "token", "gid://shopify/Product/404", nil, ratelimit.State{})
	if err != nil {
		t.Fatalf("ProductVariants() error = %v", err)
	}

	if page.ProductID != "gid://shopify/Product/404" {
		t.Errorf("ProductID = %q", page.ProductID)
	}
	if page.ProductTitle != "" || len(page.Items) != 0 || page.HasNextPage || page.Cursor != nil {
		t.Errorf("page = %+v, want empty terminal page", page)
	}
	if next.Available != 900 {
		t.Errorf("next.Available = %v, want forwarded 900", next.Available)
	}

	data, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"productId":"gid://shopify/Product/404","productTitle":"","items":[],"hasNextPage":false,"cursor":null}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestProductVariants_Variables(t *testing.T) {
	exec := &fakeExecutor{data: []string{`{"product":{"id":"p1","title":"Tee","variants":{"pageInfo":{"hasNextPage":false,"endCursor":null},"edges":[]}}}`}}
	svc := NewService(exec, zerolog.Nop())

	cursor := "abc"
	if _, _, err := svc.ProductVariants(context.Background(), testShop, "token", "p1", &cursor, ratelimit.State{}); err != nil {
		t.Fatalf("ProductVariants() error = %v", err)
	}

	vars := exec.variables[0]
	if vars["productId"] != "p1" || vars["cursor"] != "abc" || vars["first"] != VariantsPageSize {
		t.Errorf("variables = %v", vars)
	}
}

func TestResources_MissingData(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "null", data: `null`},
		{name: "empty", data: ``},
		{name: "wrong shape", data: `{"orders":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{data: []string{tt.data}}
			svc := NewService(exec, zerolog.Nop())

			_, _, err := svc.Orders(context.Background(), testShop, "token", nil, ratelimit.State{})
			if !errors.Is(err, client.ErrMalformedResponse) {
				t.Errorf("Orders() error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestResources_ErrorPassesThrough(t *testing.T) {
	exec := &fakeExecutor{err: fmt.Errorf("wrapped: %w", client.ErrAuthInvalid)}
	svc := NewService(exec, zerolog.Nop())

	_, next, err := svc.Fulfillments(context.Background(), testShop, "token", nil, ratelimit.State{})
	if !client.IsAuthInvalid(err) {
		t.Errorf("Fulfillments() error = %v, want auth invalid", err)
	}
	if next.Available != 900 {
		t.Errorf("next.Available = %v, want forwarded state", next.Available)
	}
}

func TestOrders_AuthPropagatesFromTransport(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()
	mock.Enqueue(testutil.NewUnauthorizedResponse())

	svc := newMockService(t, mock)

	_, _, err := svc.Orders(context.Background(), testShop, "revoked", nil, ratelimit.State{})
	if !errors.Is(err, client.ErrAuthInvalid) {
		t.Errorf("Orders() error = %v, want ErrAuthInvalid", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount = %d, want 1", mock.RequestCount())
	}
}

func TestOrders_TwoPageRoundTrip(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()
	mock.Enqueue(
		testutil.NewSuccessResponse(`{"orders":{"pageInfo":{"hasNextPage":true,"endCursor":"A"},"edges":[`+
			`{"node":{"id":"o1","name":"#1001","status":"OPEN","displayFulfillmentStatus":"UNFULFILLED","createdAt":"2024-01-01T00:00:00Z",`+
			`"customer":{"displayName":"Ada"},"lineItems":{"edges":[{"node":{"id":"li1","title":"Tee","quantity":1,"sku":"T1","variant":{"id":"v1"}}}]}}},`+
			`{"node":{"id":"o2","name":"#1002","status":"OPEN","displayFulfillmentStatus":"","createdAt":"2024-01-02T00:00:00Z",`+
			`"customer":null,"lineItems":{"edges":[]}}}]}}`, 800),
		testutil.NewSuccessResponse(`{"orders":{"pageInfo":{"hasNextPage":false,"endCursor":null},"edges":[`+
			`{"node":{"id":"o3","name":"#1003","status":"CLOSED","displayFulfillmentStatus":"FULFILLED","createdAt":"2024-01-03T00:00:00Z",`+
			`"customer":null,"lineItems":{"edges":[]}}}]}}`, 790),
	)

	svc := newMockService(t, mock)
	fetch := func(ctx context.Context, cursor *string, state ratelimit.State) (pagination.Page[Order], ratelimit.State, error) {
		return svc.Orders(ctx, testShop, "token", cursor, state)
	}

	orders, next, err := pagination.Collect(context.Background(), fetch, ratelimit.NewState(time.Now()), pagination.DefaultConfig())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if mock.RequestCount() != 2 {
		t.Errorf("RequestCount = %d, want 2", mock.RequestCount())
	}
	if len(orders) != 3 {
		t.Fatalf("orders = %d, want 3", len(orders))
	}
	for i, id := range []string{"o1", "o2", "o3"} {
		if orders[i].ID != id {
			t.Errorf("orders[%d].ID = %q, want %q", i, orders[i].ID, id)
		}
	}
	if orders[0].CustomerName == nil || *orders[0].CustomerName != "Ada" {
		t.Errorf("CustomerName = %v, want Ada", orders[0].CustomerName)
	}
	if orders[1].FulfillmentStatus != nil {
		t.Errorf("FulfillmentStatus = %q, want nil", *orders[1].FulfillmentStatus)
	}
	if next.Available != 790 {
		t.Errorf("next.Available = %v, want 790", next.Available)
	}

	requests := mock.Requests()
	if requests[0].Variables["cursor"] != nil {
		t.Errorf("first cursor = %v, want nil", requests[0].Variables["cursor"])
	}
	if requests[1].Variables["cursor"] != "A" {
		t.Errorf("second cursor = %v, want A", requests[1].Variables["cursor"])
	}
	// JSON numbers decode as float64 on the mock side.
	if requests[0].Variables["first"] != float64(OrdersPageSize) {
		t.Errorf("first = %v, want %d", requests[0].Variables["first"], OrdersPageSize)
	}
}

func TestFulfillments_Tracking(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()
	mock.Enqueue(testutil.NewSuccessResponse(`{"fulfillments":{"pageInfo":{"hasNextPage":false,"endCursor":"Z"},"edges":[`+
		`{"node":{"id":"f1","status":"SUCCESS","createdAt":"2024-01-01T00:00:00Z","order":{"id":"o1"},"trackingInfo":[`+
		`{"number":"1Z999","url":"https://track/1Z999","company":"UPS"},{"number":"","url":null,"company":"DHL"},{"number":"2B","url":"https://track/2B","company":null}]}}]}}`, 950))

	svc := newMockService(t, mock)

	page, _, err := svc.Fulfillments(context.Background(), testShop, "token", nil, ratelimit.State{})
	if err != nil {
		t.Fatalf("Fulfillments() error = %v", err)
	}
	if page.HasNextPage || page.Cursor != nil {
		t.Errorf("page = %+v, want terminal page with nil cursor", page)
	}
	if len(page.Items) != 1 {
		t.Fatalf("Items = %d, want 1", len(page.Items))
	}

	f := page.Items[0]
	if f.OrderID != "o1" {
		t.Errorf("OrderID = %q", f.OrderID)
	}
	if len(f.TrackingNumbers) != 2 || f.TrackingNumbers[0] != "1Z999" || f.TrackingNumbers[1] != "2B" {
		t.Errorf("TrackingNumbers = %v", f.TrackingNumbers)
	}
	if len(f.TrackingURLs) != 2 {
		t.Errorf("TrackingURLs = %v", f.TrackingURLs)
	}
	if f.CarrierName == nil || *f.CarrierName != "UPS" {
		t.Errorf("CarrierName = %v, want UPS", f.CarrierName)
	}
}

func TestProducts_NormalizesVariants(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()
	mock.Enqueue(testutil.NewSuccessResponse(`{"products":{"pageInfo":{"hasNextPage":true,"endCursor":"P2"},"edges":[`+
		`{"node":{"id":"p1","title":"Tee","descriptionHtml":"<p>Soft <b>cotton</b></p>","variants":{"edges":[`+
		`{"node":{"id":"v1","title":"S / Blue","sku":null,"selectedOptions":[{"name":"Size","value":"S"},{"name":"Colour","value":"Blue"}],"inventoryQuantity":12}}]}}}]}}`, 900))

	svc := newMockService(t, mock)

	page, _, err := svc.Products(context.Background(), testShop, "token", nil, ratelimit.State{})
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	if !page.HasNextPage || page.Cursor == nil || *page.Cursor != "P2" {
		t.Errorf("page cursor = %v, want P2", page.Cursor)
	}

	p := page.Items[0]
	if p.Description != "Soft cotton" {
		t.Errorf("Description = %q, want %q", p.Description, "Soft cotton")
	}
	if len(p.Variants) != 1 {
		t.Fatalf("Variants = %d, want 1", len(p.Variants))
	}
	v := p.Variants[0]
	if v.SKU != nil || v.Color == nil || *v.Color != "Blue" || v.InventoryStatus != InventoryInStock {
		t.Errorf("variant = %+v", v)
	}

	if got := mock.LastRequest().Variables["variants"]; got != float64(VariantsPageSize) {
		t.Errorf("variants page size = %v, want %d", got, VariantsPageSize)
	}
}

func TestShopName(t *testing.T) {
	mock := testutil.NewMockShopify()
	defer mock.Close()
	mock.Enqueue(testutil.NewSuccessResponse(`{"shop":{"name":"Demo Store"}}`, 999))

	svc := newMockService(t, mock)

	name, next, err := svc.ShopName(context.Background(), testShop, "token", ratelimit.State{})
	if err != nil {
		t.Fatalf("ShopName() error = %v", err)
	}
	if name != "Demo Store" {
		t.Errorf("name = %q", name)
	}
	if next.Available != 999 {
		t.Errorf("next.Available = %v, want 999", next.Available)
	}
}

func TestOrders_NextPageWithoutCursorIsLast(t *testing.T) {
	var logs bytes.Buffer
	exec := &fakeExecutor{data: []string{`{"orders":{"pageInfo":{"hasNextPage":true,"endCursor":null},"edges":[` +
		`{"node":{"id":"o1","name":"#1001","createdAt":"2024-01-01T00:00:00Z","lineItems":{"edges":[]}}}]}}`}}
	svc := NewService(exec, zerolog.New(&logs))

	page, _, err := svc.Orders(context.Background(), testShop, "token", nil, ratelimit.State{})
	if err != nil {
		t.Fatalf("Orders() error = %v", err)
	}
	if page.HasNextPage || page.Cursor != nil {
		t.Errorf("page = {HasNextPage: %v, Cursor: %v}, want last page", page.HasNextPage, page.Cursor)
	}
	if len(page.Items) != 1 {
		t.Errorf("Items = %d, want 1", len(page.Items))
	}
	if !strings.Contains(logs.String(), `"level":"warn"`) || !strings.Contains(logs.String(), `"resource":"orders"`) {
		t.Errorf("missing warning, logs = %s", logs.String())
	}
}
