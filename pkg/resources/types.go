package resources

import (
	"github.com/Sternrassler/shopify-connector/pkg/pagination"
)

// InventoryStatus classifies a variant's stock level.
type InventoryStatus string

const (
	// InventoryOutOfStock is a quantity of zero or less.
	InventoryOutOfStock InventoryStatus = "out_of_stock"

	// InventoryPartial is a quantity between 1 and 9.
	InventoryPartial InventoryStatus = "partial"

	// InventoryInStock is a quantity of 10 or more.
	InventoryInStock InventoryStatus = "in_stock"
)

// LineItem is a normalized order line.
type LineItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	SKU       *string `json:"sku"`
	VariantID *string `json:"variantId"`
}

// Order is a normalized order.
type Order struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	FulfillmentStatus *string    `json:"fulfillmentStatus"`
	CreatedAt         string     `json:"createdAt"`
	CustomerName      *string    `json:"customerName"`
	LineItems         []LineItem `json:"lineItems"`
}

// Fulfillment is a normalized shipment of (part of) an order.
type Fulfillment struct {
	ID              string   `json:"id"`
	OrderID         string   `json:"orderId"`
	Status          string   `json:"status"`
	TrackingNumbers []string `json:"trackingNumbers"`
	TrackingURLs    []string `json:"trackingUrls"`
	CarrierName     *string  `json:"carrierName"`
	CreatedAt       string   `json:"createdAt"`
}

// Variant is a normalized product variant.
type Variant struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	SKU               *string         `json:"sku"`
	Size              *string         `json:"size"`
	Color             *string         `json:"color"`
	Option1           *string         `json:"option1"`
	Option2           *string         `json:"option2"`
	Option3           *string         `json:"option3"`
	InventoryQuantity int             `json:"inventoryQuantity"`
	InventoryStatus   InventoryStatus `json:"inventoryStatus"`
}

// Product is a normalized product with its first page of variants.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variants    []Variant `json:"variants"`
}

// VariantsPage is a page of one product's variants.
type VariantsPage struct {
	ProductID    string `json:"productId"`
	ProductTitle string `json:"productTitle"`
	pagination.Page[Variant]
}
