package ragprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAs(t *testing.T) {
	got, err := decodeAs([]byte("\xef\xbb\xbfol\xc3\xa1"), "utf-8")
	require.NoError(t, err)
	assert.Equal(t, "olá", got)

	_, err = decodeAs([]byte("ol\xe1"), "utf-8")
	assert.ErrorIs(t, err, errInvalidUTF8)

	got, err = decodeAs([]byte("ol\xe1"), "latin-1")
	require.NoError(t, err)
	assert.Equal(t, "olá", got)

	got, err = decodeAs([]byte("\x80"), "cp1252")
	require.NoError(t, err)
	assert.Equal(t, "€", got)

	_, err = decodeAs([]byte("x"), "ebcdic-raw")
	assert.ErrorContains(t, err, "unknown encoding")
}

func TestLookupEncodingLabels(t *testing.T) {
	for _, label := range []string{"UTF-8", "ISO-8859-1", "windows-1252", "Shift_JIS", "GB18030", "Big5", "KOI8-R"} {
		assert.NotNil(t, lookupEncoding(label), label)
	}
	assert.Nil(t, lookupEncoding("x-unknown"))
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "plain", decodeText([]byte("\xef\xbb\xbfplain")))
	out := decodeText([]byte("Caf\xe9 cr\xe8me br\xfbl\xe9e, na\xefve fa\xe7ade r\xe9sum\xe9 d\xe9j\xe0 vu"))
	assert.NotEmpty(t, out)
	assert.NotContains(t, out, "\xe9")
}
