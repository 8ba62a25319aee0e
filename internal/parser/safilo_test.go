package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const safiloText = `SAFILO USA
ORDER # 7700123
ACCOUNT: 44512  REP: J. DOE
SHIP TO: NORTHSIDE VISION
CARRERA 1010/S BLK 54/19/145 QTY 2 $84.00
POLAROID PLD2130 HAVANA TORTOISE 56/17/140 QTY 1 $31.50
`

func TestSafiloParse(t *testing.T) {
	p := &SafiloParser{}

	result, err := p.Parse(Content{Text: safiloText})
	require.NoError(t, err)

	assert.Equal(t, "7700123", result.Header.OrderNumber)
	assert.Equal(t, "44512", result.Header.AccountNumber)
	assert.Equal(t, "J. DOE", result.Header.RepName)
	assert.Equal(t, "NORTHSIDE VISION", result.Header.CustomerName)

	require.Len(t, result.Items, 2)

	first := result.Items[0]
	assert.Equal(t, "CARRERA", first.Brand)
	assert.Equal(t, "1010/S", first.Model)
	assert.Equal(t, "BLK", first.Color)
	assert.Equal(t, "54/19/145", first.Size.String())
	assert.Equal(t, 2, first.Quantity)
	require.NotNil(t, first.UnitCost)
	assert.Equal(t, "84", first.UnitCost.String())

	second := result.Items[1]
	assert.Equal(t, "POLAROID", second.Brand)
	assert.Equal(t, "PLD2130", second.Model)
	assert.Equal(t, "HAVANA TORTOISE", second.Color)
	assert.Equal(t, 1, second.Quantity)

	assert.False(t, result.Partial)
}

func TestSafiloRowWithoutQtyIsSkipped(t *testing.T) {
	p := &SafiloParser{}

	result, err := p.Parse(Content{Text: "ORDER # 555\nCARRERA 1010/S BLK 54/19/145\n"})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.True(t, result.Partial)
}

func TestSafiloEmptyBody(t *testing.T) {
	p := &SafiloParser{}

	_, err := p.Parse(Content{Text: ""})
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestSafiloUnrecognizedText(t *testing.T) {
	p := &SafiloParser{}

	_, err := p.Parse(Content{Text: "hello\nworld\n"})
	assert.ErrorIs(t, err, ErrParseFailure)
}
