package resources

import (
	"regexp"
	"strings"
)

// SelectedOption is one name/value option of a variant as returned upstream.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// VariantNode is the upstream variant shape shared by the products and
// product-variants queries. Both decode into it and map through NormalizeVariant.
type VariantNode struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	SKU               *string          `json:"sku"`
	SelectedOptions   []SelectedOption `json:"selectedOptions"`
	InventoryQuantity *int             `json:"inventoryQuantity"`
}

// InventoryStatusFor classifies a stock quantity.
func InventoryStatusFor(quantity int) InventoryStatus {
	switch {
	case quantity <= 0:
		return InventoryOutOfStock
	case quantity < 10:
		return InventoryPartial
	default:
		return InventoryInStock
	}
}

// PickOption returns the value of the first option whose name matches any of
// names case-insensitively, or nil.
func PickOption(options []SelectedOption, names ...string) *string {
	for _, opt := range options {
		for _, name := range names {
			if strings.EqualFold(opt.Name, name) {
				value := opt.Value
				return &value
			}
		}
	}
	return nil
}

func optionAt(options []SelectedOption, i int) *string {
	if i >= len(options) {
		return nil
	}
	value := options[i].Value
	return &value
}

// NormalizeVariant maps an upstream variant to a Variant.
func NormalizeVariant(node VariantNode) Variant {
	quantity := 0
	if node.InventoryQuantity != nil {
		quantity = *node.InventoryQuantity
	}

	return Variant{
		ID:                node.ID,
		Title:             node.Title,
		SKU:               node.SKU,
		Size:              PickOption(node.SelectedOptions, "size"),
		Color:             PickOption(node.SelectedOptions, "color", "colour"),
		Option1:           optionAt(node.SelectedOptions, 0),
		Option2:           optionAt(node.SelectedOptions, 1),
		Option3:           optionAt(node.SelectedOptions, 2),
		InventoryQuantity: quantity,
		InventoryStatus:   InventoryStatusFor(quantity),
	}
}

func normalizeVariants(edges []edge[VariantNode]) []Variant {
	variants := make([]Variant, 0, len(edges))
	for _, e := range edges {
		variants = append(variants, NormalizeVariant(e.Node))
	}
	return variants
}

var (
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// PlainText strips markup and collapses whitespace.
func PlainText(html string) string {
	if html == "" {
		return ""
	}
	text := htmlTag.ReplaceAllString(html, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// nonEmpty returns nil for an empty upstream string.
func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
