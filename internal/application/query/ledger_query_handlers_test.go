package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pillpath-finance/internal/application/store"
	"pillpath-finance/pkg/errors"
)

func newLedgerHandler() *GetLedgerHandler {
	return NewGetLedgerHandler(store.NewFinanceStore(nil, nil))
}

func TestGetLedgerRejectsNonNumericMonthFilter(t *testing.T) {
	handler := newLedgerHandler()

	_, err := handler.Handle(context.Background(), &GetLedgerQuery{Month: "abc"})
	require.Error(t, err)
	assert.True(t, errors.IsValidationFailure(err))

	_, err = handler.Handle(context.Background(), &GetLedgerQuery{Year: "20x4"})
	require.Error(t, err)
	assert.True(t, errors.IsValidationFailure(err))
}

func TestGetLedgerAllowsPassThroughFilters(t *testing.T) {
	handler := newLedgerHandler()

	for _, q := range []*GetLedgerQuery{
		{},
		{Month: "All", Year: "All"},
		{Month: "11", Year: "2024"},
	} {
		result, err := handler.Handle(context.Background(), q)
		require.NoError(t, err)
		assert.NotNil(t, result)
	}
}

func TestGetLedgerRejectsNilQuery(t *testing.T) {
	handler := newLedgerHandler()

	_, err := handler.Handle(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidationFailure(err))
}
