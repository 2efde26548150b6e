package hms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKnownCode(t *testing.T) {
	c := Default()
	assert.Equal(t, "The extruder motor is overloaded.", c.Classify("0300-801E"))
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	c := Default()
	assert.Equal(t, "The extruder motor is overloaded.", c.Classify("0300-801e"))
}

func TestClassifyUnknownFallsBack(t *testing.T) {
	c := Default()
	assert.Equal(t, "Unknown error: 1234-ABCD", c.Classify("1234-ABCD"))

	_, ok := c.Lookup("1234-ABCD")
	assert.False(t, ok)
}

func TestClassifyFirstMatchWins(t *testing.T) {
	c := New([]Entry{
		{Codes: []string{"0001-0001", "0001-0002"}, Description: "first"},
		{Codes: []string{"0001-0002"}, Description: "second"},
	}, nil)

	assert.Equal(t, "first", c.Classify("0001-0002"))
	assert.Equal(t, 2, c.Len())
}

func TestClassifyAMSUnits(t *testing.T) {
	c := Default()
	for _, code := range []string{"0700-8010", "0701-8010", "0702-8010", "0703-8010"} {
		assert.Equal(t, "The AMS assist motor is overloaded.", c.Classify(code), code)
	}
}

func TestIsIgnored(t *testing.T) {
	c := Default()

	tests := []struct {
		code string
		want bool
	}{
		{NoError, true},
		{CancelledByUser, true},
		{"0300-400c", true},
		{"0300-801E", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.IsIgnored(tt.code), "IsIgnored(%q)", tt.code)
	}
}

func TestNoErrorAlwaysIgnored(t *testing.T) {
	c := New(nil, []string{"0300-8001"})
	require.True(t, c.IsIgnored(NoError))
	require.True(t, c.IsIgnored("0300-8001"))
	require.False(t, c.IsIgnored(CancelledByUser))
}

func TestDefaultTableIsFresh(t *testing.T) {
	a := DefaultTable()
	a[0].Description = "mutated"
	assert.NotEqual(t, "mutated", DefaultTable()[0].Description)
}

func TestDefaultTableHasNoDuplicateCodes(t *testing.T) {
	seen := map[string]string{}
	for _, e := range DefaultTable() {
		require.NotEmpty(t, e.Description)
		for _, code := range e.Codes {
			prev, dup := seen[code]
			require.False(t, dup, "code %s listed under %q and %q", code, prev, e.Description)
			seen[code] = e.Description
		}
	}
}
