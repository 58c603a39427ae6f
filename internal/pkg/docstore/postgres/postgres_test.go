package postgres

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/pkg/docstore"
)

func TestDecode_KeepsNumbers(t *testing.T) {
	fields, err := decode([]byte(`{"name":"Widget","price":2.5,"stock":12}`))
	require.NoError(t, err)

	assert.Equal(t, docstore.Fields{
		"name":  "Widget",
		"price": json.Number("2.5"),
		"stock": json.Number("12"),
	}, fields)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := decode([]byte(`not json`))
	assert.Error(t, err)
}
