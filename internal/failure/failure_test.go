package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationSurvivesWrapping(t *testing.T) {
	base := New(Assembly, StageAssembling, "/v/a.mp4", errors.New("concat failed")).
		WithOutput("Invalid data found when processing input")
	wrapped := fmt.Errorf("preview: %w", base)

	assert.True(t, IsAssembly(wrapped))
	assert.False(t, IsExtraction(wrapped))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, StageAssembling, e.Stage)
	assert.Equal(t, "/v/a.mp4", e.Source)
	assert.Equal(t, "Invalid data found when processing input", e.Output)
}

func TestErrorMessage(t *testing.T) {
	err := Errorf(DurationTooShort, StageProbing, "duration %.0fs is not above %.0fs", 140.0, 150.0).
		WithSource("/v/short.mp4")
	assert.Equal(t, "duration_too_short failure during probing [/v/short.mp4]: duration 140s is not above 150s", err.Error())
}

func TestWithSourceKeepsFirst(t *testing.T) {
	err := New(Configuration, StageConfig, "a", nil).WithSource("b")
	assert.Equal(t, "a", err.Source)
}

func TestKindOfUnclassified(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsConfiguration(nil))
}
