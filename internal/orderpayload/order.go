// Package orderpayload is the reference domain.Payload implementation for
// an e-commerce order, the worked example spec.md's scenarios are written
// against. The concrete payload schema is an external collaborator of the
// core pipeline (§6); this package is that collaborator, not core logic.
package orderpayload

import (
	"encoding/json"
	"fmt"

	"github.com/quave-io/frida-go/internal/domain"
)

// highValueThreshold is the amount above which is_high_value is true,
// matching the "high-value single-item order" scenario (amount 1500.0 ->
// is_high_value true, rule amount > 1000 triggers).
const highValueThreshold = 1000.0

// Item is one line item on an order.
type Item struct {
	SKU   string  `json:"sku"`
	Price float64 `json:"price"`
}

// Customer identifies the purchaser and is the order's primary matching
// field (shared email links two orders in the graph).
type Customer struct {
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// Device identifies the originating client and is a secondary matching
// field (shared device chains orders at depth 2 behind a shared email).
type Device struct {
	Ident string `json:"ident"`
}

// Order is the concrete domain.Payload for this pipeline.
type Order struct {
	Number   string   `json:"payload_number"`
	Major    int      `json:"schema_major"`
	Minor    int      `json:"schema_minor"`
	Customer Customer `json:"customer"`
	Device   Device   `json:"device"`
	Items    []Item   `json:"items"`
}

// New returns a domain.PayloadFactory producing empty Orders, the shape
// postgres.Store and the HTTP import handler unmarshal into.
func New() domain.PayloadFactory {
	return func() domain.Payload { return &Order{} }
}

var _ domain.Payload = (*Order)(nil)

// Validate rejects an order with no external id or no line items.
func (o *Order) Validate() error {
	if o.Number == "" {
		return fmt.Errorf("%w: payload_number is required", domain.ErrValidation)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", domain.ErrValidation)
	}
	for i, item := range o.Items {
		if item.Price < 0 {
			return fmt.Errorf("%w: item %d has negative price", domain.ErrValidation, i)
		}
	}
	return nil
}

// PayloadNumber returns the externally supplied unique id.
func (o *Order) PayloadNumber() string { return o.Number }

// SchemaVersion returns the (major, minor) schema version pair.
func (o *Order) SchemaVersion() (int, int) { return o.Major, o.Minor }

// amount sums the order's line item prices.
func (o *Order) amount() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Price
	}
	return total
}

// ExtractSimpleFeatures derives features from the payload alone.
func (o *Order) ExtractSimpleFeatures() []domain.Feature {
	amount := o.amount()
	return []domain.Feature{
		{Name: "amount", Value: domain.NewDoubleFeature(amount)},
		{Name: "item_count", Value: domain.NewIntFeature(int64(len(o.Items)))},
		{Name: "is_high_value", Value: domain.NewBoolFeature(amount > highValueThreshold)},
		{Name: "customer_is_active", Value: domain.NewBoolFeature(o.Customer.IsActive)},
	}
}

// ExtractGraphFeatures derives features from the traversal result.
func (o *Order) ExtractGraphFeatures(connected []domain.ConnectedTransaction, direct []domain.DirectConnection) []domain.Feature {
	maxDepth := 0
	for _, c := range connected {
		if c.Depth > maxDepth {
			maxDepth = c.Depth
		}
	}
	return []domain.Feature{
		{Name: "connected_count", Value: domain.NewIntFeature(int64(len(connected)))},
		{Name: "direct_connection_count", Value: domain.NewIntFeature(int64(len(direct)))},
		{Name: "max_connection_depth", Value: domain.NewIntFeature(int64(maxDepth))},
	}
}

// ExtractMatchingFields derives the (matcher, value) pairs this order
// contributes to the match graph: customer.email and device.ident, each
// omitted when empty (§4.3: "empty matching fields: no nodes created").
func (o *Order) ExtractMatchingFields() []domain.MatchingField {
	var fields []domain.MatchingField
	if o.Customer.Email != "" {
		fields = append(fields, domain.MatchingField{Matcher: "customer.email", Value: o.Customer.Email})
	}
	if o.Device.Ident != "" {
		fields = append(fields, domain.MatchingField{Matcher: "device.ident", Value: o.Device.Ident})
	}
	return fields
}

// MarshalJSON implements the bidirectional JSON round trip storage relies
// on to persist and reload the payload column.
func (o *Order) MarshalJSON() ([]byte, error) {
	type alias Order
	return json.Marshal((*alias)(o))
}

// UnmarshalJSON implements the bidirectional JSON round trip storage
// relies on to persist and reload the payload column.
func (o *Order) UnmarshalJSON(data []byte) error {
	type alias Order
	return json.Unmarshal(data, (*alias)(o))
}

// ColumnDescriptors lists the payload-specific fields the filter planner
// may query against, each resolving through a JSON path into the stored
// payload column rather than a dedicated table column.
func (o *Order) ColumnDescriptors() []domain.ColumnDescriptor {
	return []domain.ColumnDescriptor{
		{Name: "customer.email", HelpText: "purchaser email", ScalarType: domain.FilterTypeString, FilterFragment: "t.payload->'customer'->>'email'"},
		{Name: "customer.is_active", HelpText: "purchaser account active", ScalarType: domain.FilterTypeBoolean, FilterFragment: "(t.payload->'customer'->>'is_active')::boolean"},
		{Name: "amount", HelpText: "order total", ScalarType: domain.FilterTypeNumber, FilterFragment: "(SELECT COALESCE(SUM((item->>'price')::numeric), 0) FROM jsonb_array_elements(t.payload->'items') AS item)"},
		{Name: "item_count", HelpText: "number of line items", ScalarType: domain.FilterTypeNumber, FilterFragment: "jsonb_array_length(t.payload->'items')"},
	}
}
