package orderpayload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quave-io/frida-go/internal/domain"
)

func TestOrder_Validate(t *testing.T) {
	o := &Order{}
	require.Error(t, o.Validate())

	o.Number = "ord-1"
	require.Error(t, o.Validate())

	o.Items = []Item{{SKU: "a", Price: -1}}
	require.Error(t, o.Validate())

	o.Items = []Item{{SKU: "a", Price: 1500}}
	require.NoError(t, o.Validate())
}

func TestOrder_ExtractSimpleFeatures_HighValueSingleItem(t *testing.T) {
	o := &Order{
		Number:   "ord-1",
		Customer: Customer{Email: "a@x", IsActive: true},
		Items:    []Item{{SKU: "widget", Price: 1500.0}},
	}

	features := o.ExtractSimpleFeatures()
	byName := map[string]domain.FeatureValue{}
	for _, f := range features {
		byName[f.Name] = f.Value
	}

	assert.Equal(t, 1500.0, byName["amount"].DoubleVal)
	assert.Equal(t, int64(1), byName["item_count"].IntVal)
	assert.True(t, byName["is_high_value"].BoolVal)
}

func TestOrder_ExtractMatchingFields(t *testing.T) {
	o := &Order{Customer: Customer{Email: "shared@x"}, Device: Device{Ident: "dev-1"}}
	fields := o.ExtractMatchingFields()
	require.Len(t, fields, 2)
	assert.Equal(t, "customer.email", fields[0].Matcher)
	assert.Equal(t, "shared@x", fields[0].Value)
	assert.Equal(t, "device.ident", fields[1].Matcher)
}

func TestOrder_ExtractMatchingFields_Empty(t *testing.T) {
	o := &Order{}
	assert.Empty(t, o.ExtractMatchingFields())
}

func TestOrder_MarshalUnmarshalRoundTrip(t *testing.T) {
	o := &Order{
		Number:   "ord-1",
		Major:    1,
		Minor:    0,
		Customer: Customer{Email: "a@x", IsActive: true},
		Device:   Device{Ident: "dev-1"},
		Items:    []Item{{SKU: "widget", Price: 1500.0}},
	}
	raw, err := o.MarshalJSON()
	require.NoError(t, err)

	var out Order
	require.NoError(t, out.UnmarshalJSON(raw))
	assert.Equal(t, *o, out)
}

func TestOrder_ExtractGraphFeatures_MaxDepth(t *testing.T) {
	o := &Order{}
	connected := []domain.ConnectedTransaction{{Depth: 1}, {Depth: 2}}
	direct := []domain.DirectConnection{{TransactionID: 1}}

	features := o.ExtractGraphFeatures(connected, direct)
	byName := map[string]domain.FeatureValue{}
	for _, f := range features {
		byName[f.Name] = f.Value
	}
	assert.Equal(t, int64(2), byName["max_connection_depth"].IntVal)
	assert.Equal(t, int64(2), byName["connected_count"].IntVal)
	assert.Equal(t, int64(1), byName["direct_connection_count"].IntVal)
}
