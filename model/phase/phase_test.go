package phase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/lazyres/model/phase"
)

func TestOrder(t *testing.T) {
	all := phase.All()
	require.Len(t, all, phase.Count-1)
	assert.Equal(t, phase.First, all[0])
	assert.Equal(t, phase.Max, all[len(all)-1])

	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].AtLeast(all[i-1]))
		assert.False(t, all[i-1].AtLeast(all[i]))
		assert.Equal(t, all[i], all[i-1].Next())
		assert.Equal(t, all[i-1], all[i].Previous())
	}

	assert.Equal(t, phase.Max, phase.Max.Next())
	assert.Equal(t, phase.Raw, phase.Raw.Previous())
	assert.Equal(t, phase.Raw, phase.First.Previous())
}

func TestParse(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for p := phase.Raw; p <= phase.Max; p++ {
			parsed, err := phase.Parse(p.String())
			require.NoError(t, err)
			assert.Equal(t, p, parsed)
		}
	})

	t.Run("dashes and case", func(t *testing.T) {
		parsed, err := phase.Parse("Implicit-Types")
		require.NoError(t, err)
		assert.Equal(t, phase.ImplicitTypes, parsed)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := phase.Parse("linking")
		require.Error(t, err)
	})
}

func TestText(t *testing.T) {
	text, err := phase.AnnotationArguments.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "annotation_arguments", string(text))

	var p phase.Phase
	require.NoError(t, p.UnmarshalText([]byte("super_types")))
	assert.Equal(t, phase.SuperTypes, p)

	_, err = phase.Phase(42).MarshalText()
	require.Error(t, err)
	assert.False(t, phase.Phase(42).IsValid())
	assert.Equal(t, "phase(42)", phase.Phase(42).String())
}
