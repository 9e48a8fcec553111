package emotion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapLabel(t *testing.T) {
	good := func(label, expect string) {
		key, ok := MapLabel(label)
		require.True(t, ok, "label %v must map", label)
		require.Equal(t, expect, key)
	}
	good("Happy", Happy)
	good("happiness", Happy)
	good("ANGER", Angry)
	good("angry", Angry)
	good("Surprise", Surprised)
	good("surprised", Surprised)
	good("neutral", Neutral)
	good("Disgust", Disgust)
	good("fearful", Fear)
	good("Sadness", Sad)

	// "unhappy" contains "happy", but must map to sad
	good("unhappy", Sad)

	// Labels from no known vocabulary are dropped
	_, ok := MapLabel("bored")
	require.False(t, ok)
	_, ok = MapLabel("")
	require.False(t, ok)
}
