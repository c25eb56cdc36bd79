package queryplan

import "github.com/quave-io/frida-go/internal/domain"

// staticRegistry is a map-backed domain.ModelRegistry built once at
// startup from the fixed table shape plus whatever payload-specific
// columns the concrete Payload type declares (§9: "model registry entry
// for a field may carry a raw SQL fragment").
type staticRegistry map[string]domain.TableDescriptor

func (r staticRegistry) Table(name string) (domain.TableDescriptor, bool) {
	t, ok := r[name]
	return t, ok
}

// NewTransactionsRegistry builds the model registry rooted at the
// transactions table. payloadColumns are merged in as additional
// transactions fields, each preferring its ColumnDescriptor's
// FilterFragment (typically a JSON path into the payload column) over the
// bare column name the generic renderer would otherwise emit.
func NewTransactionsRegistry(payloadColumns []domain.ColumnDescriptor) domain.ModelRegistry {
	transactionFields := map[string]domain.FieldDescriptor{
		"id":                  {Name: "id", Type: domain.FilterTypeNumber},
		"payload_number":      {Name: "payload_number", Type: domain.FilterTypeString},
		"schema_major":        {Name: "schema_major", Type: domain.FilterTypeNumber},
		"schema_minor":        {Name: "schema_minor", Type: domain.FilterTypeNumber},
		"label_id":            {Name: "label_id", Type: domain.FilterTypeNumber},
		"last_scoring_at":     {Name: "last_scoring_at", Type: domain.FilterTypeString},
		"processing_complete": {Name: "processing_complete", Type: domain.FilterTypeBoolean},
		"created_at":          {Name: "created_at", Type: domain.FilterTypeString},
	}
	for _, col := range payloadColumns {
		transactionFields[col.Name] = domain.FieldDescriptor{
			Name:           col.Name,
			Type:           col.ScalarType,
			FilterFragment: col.FilterFragment,
		}
	}

	return staticRegistry{
		"transactions": {
			Name:       "transactions",
			Alias:      "t",
			PrimaryKey: "id",
			Fields:     transactionFields,
			Relations: map[string]domain.Relation{
				"label": {Kind: domain.RelationBelongsTo, TargetTable: "labels", ForeignKey: "label_id"},
			},
		},
		"labels": {
			Name:       "labels",
			Alias:      "labels",
			PrimaryKey: "id",
			Fields: map[string]domain.FieldDescriptor{
				"id":             {Name: "id", Type: domain.FilterTypeNumber},
				"fraud_level":    {Name: "fraud_level", Type: domain.FilterTypeString},
				"fraud_category": {Name: "fraud_category", Type: domain.FilterTypeString},
				"source":         {Name: "source", Type: domain.FilterTypeString},
				"labeled_by":     {Name: "labeled_by", Type: domain.FilterTypeString},
				"created_at":     {Name: "created_at", Type: domain.FilterTypeString},
			},
		},
	}
}
