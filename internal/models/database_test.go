package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArray_RoundTrip(t *testing.T) {
	cases := []StringArray{
		{"Fees, Scholarships", "Curriculum"},
		{`Say "hi"`, `C:\path`, "{braces}"},
		{"NULL", ""},
		{"Pricing"},
		{},
	}

	for _, in := range cases {
		v, err := in.Value()
		require.NoError(t, err)

		var out StringArray
		require.NoError(t, out.Scan(v))
		assert.Equal(t, in, out)

		var fromBytes StringArray
		require.NoError(t, fromBytes.Scan([]byte(v.(string))))
		assert.Equal(t, in, fromBytes)
	}
}

func TestStringArray_ScanPostgresText(t *testing.T) {
	var s StringArray
	require.NoError(t, s.Scan(`{Pricing,"Fees, Scholarships",Curriculum}`))
	assert.Equal(t, StringArray{"Pricing", "Fees, Scholarships", "Curriculum"}, s)

	require.NoError(t, s.Scan(nil))
	assert.Equal(t, StringArray{}, s)

	assert.Error(t, s.Scan(42))
}

func TestStringArray_NilValue(t *testing.T) {
	v, err := StringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}

func TestIsValidFeedbackType(t *testing.T) {
	for _, ft := range FeedbackTypes {
		assert.True(t, IsValidFeedbackType(ft))
	}
	assert.False(t, IsValidFeedbackType("great"))
}
