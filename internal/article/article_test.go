package article

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"draft", "processing", "completed", "rejected"} {
		got, err := ParseStatus(s)
		require.NoError(t, err, s)
		assert.Equal(t, Status(s), got)
	}

	_, err := ParseStatus("Completed")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)
}
