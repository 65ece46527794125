package dbtypes

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomizationsNormalizeEveryShape(t *testing.T) {
	payload := `[
		{"name": "Extra spicy", "price_adjustment": "0.50", "group": "Heat"},
		{"name": "Garlic naan", "price": 2.25, "group_name": "Sides"},
		"No onions"
	]`

	var got Customizations
	require.NoError(t, json.Unmarshal([]byte(payload), &got))
	require.Len(t, got, 3)

	assert.Equal(t, "Extra spicy", got[0].Name)
	assert.Equal(t, "0.5", got[0].PriceAdjustment.String())
	assert.Equal(t, "Heat", got[0].Group)

	assert.Equal(t, "Garlic naan", got[1].Name)
	assert.Equal(t, "2.25", got[1].PriceAdjustment.String())
	assert.Equal(t, "Sides", got[1].Group)

	assert.Equal(t, "No onions", got[2].Name)
	assert.True(t, got[2].PriceAdjustment.IsZero())

	assert.Equal(t, "2.75", got.Total().String())
	assert.Equal(t, []string{"Extra spicy", "Garlic naan", "No onions"}, got.Names())
}

func TestCustomizationsEgressIsCanonical(t *testing.T) {
	var in Customizations
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"Raita","price":"1","group_name":"Sides"}]`), &in))

	stored, err := in.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Raita","price_adjustment":"1","group":"Sides"}]`, stored.(string))

	var back Customizations
	require.NoError(t, back.Scan([]byte(stored.(string))))
	assert.Equal(t, "1", back[0].PriceAdjustment.String())
}

func TestCustomizationsScanEmpty(t *testing.T) {
	var cs Customizations
	require.NoError(t, cs.Scan(nil))
	assert.Empty(t, cs)
	require.NoError(t, cs.Scan(""))
	assert.Empty(t, cs)
}

func TestIntArrayRoundTrip(t *testing.T) {
	var arr IntArray
	require.NoError(t, arr.Scan("{8, 9,12}"))
	assert.Equal(t, IntArray{8, 9, 12}, arr)

	v, err := IntArray{3, 1}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{3,1}", v)

	empty, err := IntArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)

	assert.Equal(t, IntArray{1, 3}, IntArray{3, 1}.Sorted())
	assert.True(t, arr.Contains(9))
	assert.Error(t, arr.Scan("{x}"))
}

func TestUUIDArrayHelpers(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	arr := UUIDArray{a, b, c}

	assert.True(t, arr.Contains(b))
	assert.Equal(t, UUIDArray{a, c}, arr.Without(b))

	var scanned UUIDArray
	v, err := arr.Value()
	require.NoError(t, err)
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, arr, scanned)
}

func TestJSONValueAndRaw(t *testing.T) {
	var j JSON
	require.NoError(t, j.Scan([]byte(`{"id":1}`)))
	v, err := j.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, v)

	var null JSON
	assert.Nil(t, null.Raw())
	nv, err := null.Value()
	require.NoError(t, err)
	assert.Nil(t, nv)
}
