package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromURL(t *testing.T) {
	tests := map[string]string{
		"https://bucket.s3.ap-southeast-1.amazonaws.com/scans/user-1/01HX.png": "scans/user-1/01HX.png",
		"https://bucket.s3.amazonaws.com/scans/a%20b.png":                      "scans/a b.png",
		"scans/plain.png": "scans/plain.png",
	}
	for in, want := range tests {
		got, err := KeyFromURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := KeyFromURL("https://bucket.s3.amazonaws.com/%zz")
	assert.Error(t, err)
}

func TestNew_NoBucket(t *testing.T) {
	t.Setenv("AWS_BUCKET_NAME", "")
	_, err := New()
	assert.ErrorIs(t, err, ErrNoBucket)
}
