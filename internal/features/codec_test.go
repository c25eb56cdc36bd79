package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quave-io/frida-go/internal/domain"
)

func TestEncodeDecodeFeatures_RoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := []domain.Feature{
		{Name: "amount", Value: domain.NewDoubleFeature(1500.0)},
		{Name: "item_count", Value: domain.NewIntFeature(1)},
		{Name: "is_high_value", Value: domain.NewBoolFeature(true)},
		{Name: "customer_email", Value: domain.NewStringFeature("a@x")},
		{Name: "seen_at", Value: domain.NewDateTimeFeature(now)},
		{Name: "prior_amounts", Value: domain.NewDoubleListFeature([]float64{1.0, 2.0, 3.0})},
		{Name: "flags", Value: domain.NewBoolListFeature([]bool{true, false, true})},
		{Name: "related_ids", Value: domain.NewIntListFeature([]int64{1, 2, 3})},
		{Name: "labels", Value: domain.NewStringListFeature([]string{"a", "b"})},
	}

	raw, err := EncodeFeatures(in)
	require.NoError(t, err)

	out, err := DecodeFeatures(raw)
	require.NoError(t, err)
	require.Len(t, out, len(in))

	for i := range in {
		assert.Equal(t, in[i].Name, out[i].Name)
		assert.Equal(t, in[i].Value, out[i].Value)
	}
}

func TestDecodeFeatures_Empty(t *testing.T) {
	out, err := DecodeFeatures(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDecodeFeatures_UnknownKind(t *testing.T) {
	_, err := DecodeFeatures([]byte(`[{"name":"x","kind":"bogus"}]`))
	assert.Error(t, err)
}
