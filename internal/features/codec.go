// Package features implements the JSON encoding of the Feature Store's
// tagged-union FeatureValue type, used by the postgres adapter to round
// trip FeatureSet.Simple/Graph through the features table's JSONB columns
// (spec §4.4, §9 "Feature values as a tagged union").
package features

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quave-io/frida-go/internal/domain"
)

// wireFeature is the JSON-on-the-wire shape of one domain.Feature: a
// discriminator plus exactly one populated value field, so storage
// round-trips preserve the variant instead of erasing it behind an
// untyped "value" bag.
type wireFeature struct {
	Name string `json:"name"`
	Kind string `json:"kind"`

	Int      *int64     `json:"int,omitempty"`
	Double   *float64   `json:"double,omitempty"`
	String   *string    `json:"string,omitempty"`
	Bool     *bool      `json:"bool,omitempty"`
	DateTime *time.Time `json:"datetime,omitempty"`

	IntList    []int64   `json:"int_list,omitempty"`
	DoubleList []float64 `json:"double_list,omitempty"`
	StringList []string  `json:"string_list,omitempty"`
	BoolList   []bool    `json:"bool_list,omitempty"`
}

// EncodeFeatures renders features as a JSON array suitable for a jsonb
// column, preserving declaration order (§4.4's "including list element
// order" invariant applies within a feature's own list value; this
// preserves ordering of the feature slice itself too).
func EncodeFeatures(fs []domain.Feature) ([]byte, error) {
	wire := make([]wireFeature, 0, len(fs))
	for _, f := range fs {
		w, err := toWire(f)
		if err != nil {
			return nil, fmt.Errorf("op=features.EncodeFeatures name=%s: %w", f.Name, err)
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

// DecodeFeatures parses a jsonb-encoded feature array back into domain
// Features, restoring the exact FeatureKind discriminator.
func DecodeFeatures(raw []byte) ([]domain.Feature, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wire []wireFeature
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("op=features.DecodeFeatures: %w", err)
	}
	out := make([]domain.Feature, 0, len(wire))
	for _, w := range wire {
		f, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("op=features.DecodeFeatures name=%s: %w", w.Name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func toWire(f domain.Feature) (wireFeature, error) {
	w := wireFeature{Name: f.Name, Kind: f.Value.Kind.String()}
	switch f.Value.Kind {
	case domain.FeatureInt:
		w.Int = &f.Value.IntVal
	case domain.FeatureDouble:
		w.Double = &f.Value.DoubleVal
	case domain.FeatureString:
		w.String = &f.Value.StringVal
	case domain.FeatureBool:
		w.Bool = &f.Value.BoolVal
	case domain.FeatureDateTime:
		w.DateTime = &f.Value.DateTimeVal
	case domain.FeatureIntList:
		w.IntList = f.Value.IntListVal
	case domain.FeatureDoubleList:
		w.DoubleList = f.Value.DoubleListVal
	case domain.FeatureStringList:
		w.StringList = f.Value.StringListVal
	case domain.FeatureBoolList:
		w.BoolList = f.Value.BoolListVal
	default:
		return wireFeature{}, fmt.Errorf("unsupported feature kind %v", f.Value.Kind)
	}
	return w, nil
}

func fromWire(w wireFeature) (domain.Feature, error) {
	var v domain.FeatureValue
	switch w.Kind {
	case domain.FeatureInt.String():
		if w.Int == nil {
			return domain.Feature{}, fmt.Errorf("missing int value")
		}
		v = domain.NewIntFeature(*w.Int)
	case domain.FeatureDouble.String():
		if w.Double == nil {
			return domain.Feature{}, fmt.Errorf("missing double value")
		}
		v = domain.NewDoubleFeature(*w.Double)
	case domain.FeatureString.String():
		if w.String == nil {
			return domain.Feature{}, fmt.Errorf("missing string value")
		}
		v = domain.NewStringFeature(*w.String)
	case domain.FeatureBool.String():
		if w.Bool == nil {
			return domain.Feature{}, fmt.Errorf("missing bool value")
		}
		v = domain.NewBoolFeature(*w.Bool)
	case domain.FeatureDateTime.String():
		if w.DateTime == nil {
			return domain.Feature{}, fmt.Errorf("missing datetime value")
		}
		v = domain.NewDateTimeFeature(*w.DateTime)
	case domain.FeatureIntList.String():
		v = domain.NewIntListFeature(w.IntList)
	case domain.FeatureDoubleList.String():
		v = domain.NewDoubleListFeature(w.DoubleList)
	case domain.FeatureStringList.String():
		v = domain.NewStringListFeature(w.StringList)
	case domain.FeatureBoolList.String():
		v = domain.NewBoolListFeature(w.BoolList)
	default:
		return domain.Feature{}, fmt.Errorf("unknown feature kind %q", w.Kind)
	}
	return domain.Feature{Name: w.Name, Value: v}, nil
}
