package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPercent(t *testing.T) {
	tests := []struct {
		name    string
		amount  Money
		percent float64
		want    Money
	}{
		{"thirty percent", 29900, 30, 20930},
		{"rounds half up", 9999, 15, 8499},
		{"zero percent keeps price", 29900, 0, 29900},
		{"full discount refused", 29900, 100, 29900},
		{"fractional percent", 10000, 12.5, 8750},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.amount.ApplyPercent(tt.percent))
		})
	}
}

func TestParse(t *testing.T) {
	cases := map[string]Money{
		"149.90": 14990,
		"149,9":  14990,
		"299 DH": 29900,
		"":       0,
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("-3")
	assert.Error(t, err)
	_, err = Parse("abc")
	assert.Error(t, err)
}

func TestJSON(t *testing.T) {
	var payload struct {
		Price Money `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price": 199.5}`), &payload))
	assert.Equal(t, Money(19950), payload.Price)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price": 199.50}`, string(out))
}
