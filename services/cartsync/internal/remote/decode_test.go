package remote

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/services/cartsync/internal/domain"
)

func mustDecode(t *testing.T, body string) *domain.ServerCart {
	t.Helper()
	cart, err := decodeCart([]byte(body))
	require.NoError(t, err)
	return cart
}

func TestDecodeCart_DataEnvelope(t *testing.T) {
	cart := mustDecode(t, `{"data":{"id":42,"total":"1,290.50","item_count":"2","items":[
		{"product":{"id":"p1","name":"Coat","price":645.25,"images":[{"url":"/c.jpg"},"/d.jpg"],"stock":1},
		 "quantity":2,"size":"L","color":""}
	]}}`)

	assert.False(t, cart.Malformed)
	assert.Equal(t, "42", cart.ID)
	require.NotNil(t, cart.Total)
	assert.True(t, decimal.RequireFromString("1290.50").Equal(*cart.Total))
	require.NotNil(t, cart.ItemCount)
	assert.Equal(t, 2, *cart.ItemCount)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "p1", cart.Lines[0].Product.ID)
	assert.Equal(t, "Coat", cart.Lines[0].Product.Name)
	assert.Equal(t, []string{"/c.jpg", "/d.jpg"}, cart.Lines[0].Product.Images)
	assert.Equal(t, "L", cart.Lines[0].Size)
}

func TestDecodeCart_MissingFieldsDefault(t *testing.T) {
	cart := mustDecode(t, `{"items":[{"product_id":"p1"}]}`)

	assert.False(t, cart.Malformed)
	assert.Empty(t, cart.ID)
	assert.Nil(t, cart.Total, "absent total is recomputed by the caller")
	assert.Nil(t, cart.ItemCount)
	require.Len(t, cart.Lines, 1)
	l := cart.Lines[0]
	assert.True(t, l.Product.Price.IsZero())
	assert.Equal(t, 0, l.Quantity)
	assert.Equal(t, []string{}, l.Product.Images)
}

func TestDecodeCart_InvalidFieldsAreIndependent(t *testing.T) {
	cart := mustDecode(t, `{"id":"c1","total":{"amount":1},"item_count":"lots","items":[
		{"product_id":"p1","price":"9.99","quantity":1,"images":"nope"},
		"garbage",
		{"name":"no id","quantity":1}
	]}`)

	assert.True(t, cart.Malformed)
	assert.Equal(t, "c1", cart.ID)
	assert.Nil(t, cart.Total)
	assert.Nil(t, cart.ItemCount)
	require.Len(t, cart.Lines, 1)
	assert.True(t, decimal.RequireFromString("9.99").Equal(cart.Lines[0].Product.Price))
	assert.Equal(t, []string{}, cart.Lines[0].Product.Images)
}

func TestDecodeCart_ItemsNotArray(t *testing.T) {
	cart := mustDecode(t, `{"id":"c1","items":{"p1":1}}`)

	assert.True(t, cart.Malformed)
	assert.Equal(t, "c1", cart.ID)
	assert.Empty(t, cart.Lines)
}

func TestDecodeCart_NonObjectBodiesAreMalformed(t *testing.T) {
	for _, body := range []string{``, `null`, `[]`, `"cart"`, `<html>maintenance</html>`, `{"broken":`} {
		cart, err := decodeCart([]byte(body))
		assert.Nil(t, cart, body)
		assert.ErrorIs(t, err, domain.ErrMalformed, body)
	}
}

func TestDecodeCart_NullItems(t *testing.T) {
	cart := mustDecode(t, `{"items":null,"total":0,"item_count":0}`)

	assert.False(t, cart.Malformed)
	assert.Empty(t, cart.Lines)
	require.NotNil(t, cart.Total)
	assert.True(t, cart.Total.IsZero())
}

func TestIntField(t *testing.T) {
	n, ok := intField([]byte(`3`))
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = intField([]byte(`"4"`))
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	n, ok = intField([]byte(`2.0`))
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	for _, huge := range []string{`1e30`, `-1e30`, `"99999999999"`, `9223372036854775807`} {
		_, ok = intField([]byte(huge))
		assert.False(t, ok, huge)
	}

	_, ok = intField([]byte(`true`))
	assert.False(t, ok)
	_, ok = intField(nil)
	assert.False(t, ok)
}
