package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/usecase"
)

type stubCommonStorage struct {
	domain.CommonStorage
	labelResult domain.LabelingResult
	labelErr    error
	gotIDs      []int64
	gotLabel    domain.Label
}

func (s *stubCommonStorage) LabelTransactions(_ domain.Context, ids []int64, label domain.Label) (domain.LabelingResult, error) {
	s.gotIDs = ids
	s.gotLabel = label
	return s.labelResult, s.labelErr
}

func TestLabeler_Label_EmptyIDs(t *testing.T) {
	lb := usecase.NewLabeler(&stubCommonStorage{})
	_, err := lb.Label(context.Background(), nil, domain.Label{FraudLevel: domain.FraudLevelFraud, Source: domain.LabelSourceManual})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLabeler_Label_UnknownFraudLevel(t *testing.T) {
	lb := usecase.NewLabeler(&stubCommonStorage{})
	_, err := lb.Label(context.Background(), []int64{1}, domain.Label{FraudLevel: "Bogus", Source: domain.LabelSourceManual})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLabeler_Label_UnknownSource(t *testing.T) {
	lb := usecase.NewLabeler(&stubCommonStorage{})
	_, err := lb.Label(context.Background(), []int64{1}, domain.Label{FraudLevel: domain.FraudLevelFraud, Source: "Bogus"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLabeler_Label_StorageError(t *testing.T) {
	storage := &stubCommonStorage{labelErr: errors.New("boom")}
	lb := usecase.NewLabeler(storage)
	_, err := lb.Label(context.Background(), []int64{1}, domain.Label{FraudLevel: domain.FraudLevelFraud, Source: domain.LabelSourceManual})
	require.Error(t, err)
}

func TestLabeler_Label_PartialSuccess(t *testing.T) {
	storage := &stubCommonStorage{labelResult: domain.LabelingResult{SuccessCount: 1, FailedTransactionIDs: []int64{2}}}
	lb := usecase.NewLabeler(storage)
	result, err := lb.Label(context.Background(), []int64{1, 2}, domain.Label{FraudLevel: domain.FraudLevelNoFraud, Source: domain.LabelSourceAPI})
	require.NoError(t, err)
	assert.True(t, result.IsPartialSuccess())
	assert.Equal(t, []int64{1, 2}, storage.gotIDs)
	assert.Equal(t, domain.FraudLevelNoFraud, storage.gotLabel.FraudLevel)
}

func TestLabeler_Label_CompleteSuccess(t *testing.T) {
	storage := &stubCommonStorage{labelResult: domain.LabelingResult{SuccessCount: 2}}
	lb := usecase.NewLabeler(storage)
	result, err := lb.Label(context.Background(), []int64{1, 2}, domain.Label{FraudLevel: domain.FraudLevelFraud, Source: domain.LabelSourceManual})
	require.NoError(t, err)
	assert.True(t, result.IsCompleteSuccess())
}
