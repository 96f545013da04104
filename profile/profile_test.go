package profile

import (
	"testing"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelta_Empty(t *testing.T) {
	assert.True(t, Delta{}.Empty())
	assert.False(t, Delta{Adds: []NewSlot{{}}}.Empty())
	assert.False(t, Delta{Updates: []UpdateSlot{{}}}.Empty())
	assert.False(t, Delta{Deletes: []string{"x"}}.Empty())
}

func TestAttrs_Validate_NormalizesAndChecks(t *testing.T) {
	a := &Attrs{Topic: " Basic  Info ", SubTopic: "NAME"}
	require.NoError(t, a.Validate())
	assert.Equal(t, "basic_info", a.Topic)
	assert.Equal(t, "name", a.SubTopic)
}

func TestAttrs_Validate_RejectsEmpty(t *testing.T) {
	a := &Attrs{Topic: "  ", SubTopic: "name"}
	err := a.Validate()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.BadRequest))
}

func TestCountByTopic(t *testing.T) {
	slots := []*Slot{
		{Attrs: Attrs{Topic: "basic_info"}},
		{Attrs: Attrs{Topic: "basic_info"}},
		{Attrs: Attrs{Topic: "interest"}},
	}
	counts := CountByTopic(slots)
	assert.Equal(t, 2, counts["basic_info"])
	assert.Equal(t, 1, counts["interest"])
}

func TestFind(t *testing.T) {
	slots := []*Slot{
		{ID: "1", Attrs: Attrs{Topic: "basic_info", SubTopic: "name"}},
		{ID: "2", Attrs: Attrs{Topic: "interest", SubTopic: "hobby"}},
	}
	found := Find(slots, "interest", "hobby")
	require.NotNil(t, found)
	assert.Equal(t, "2", found.ID)

	assert.Nil(t, Find(slots, "nonexistent", "sub"))
}

func TestNormalizeTopic(t *testing.T) {
	assert.Equal(t, "basic_info", NormalizeTopic("  Basic   Info "))
}
