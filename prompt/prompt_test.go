package prompt

import (
	"testing"

	"github.com/memobase-dev/memobase-go/errs"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtract_CoalescesDuplicateKeys(t *testing.T) {
	out := "basic_info\tname\tJohn\nbasic_info\tName\tSmith\ninterest\thobby\tsailing\n"
	facts, err := ParseExtract(out)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "basic_info", facts[0].Topic)
	assert.Equal(t, "name", facts[0].SubTopic)
	assert.Equal(t, "John; Smith", facts[0].Memo)
	assert.Equal(t, "sailing", facts[1].Memo)
}

func TestParseExtract_SkipsBlankLines(t *testing.T) {
	facts, err := ParseExtract("\n\nbasic_info\tname\tJohn\n\n")
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestParseExtract_MalformedLine(t *testing.T) {
	_, err := ParseExtract("not-enough-fields")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ParseFailure))
}

func TestParseExtract_EmptyField(t *testing.T) {
	_, err := ParseExtract("basic_info\t\tJohn")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ParseFailure))
}

func TestParseMerge_Update(t *testing.T) {
	out, err := ParseMerge("UPDATE\tnew content here")
	require.NoError(t, err)
	assert.True(t, out.Update)
	assert.Equal(t, "new content here", out.Memo)
}

func TestParseMerge_Abort(t *testing.T) {
	out, err := ParseMerge("ABORT\tinvalid")
	require.NoError(t, err)
	assert.False(t, out.Update)
}

func TestParseMerge_UnknownTag(t *testing.T) {
	_, err := ParseMerge("MAYBE\tsomething")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ParseFailure))
}

func TestParseMerge_EmptyUpdateMemo(t *testing.T) {
	_, err := ParseMerge("UPDATE\t  ")
	require.Error(t, err)
}

func TestParseMerge_Malformed(t *testing.T) {
	_, err := ParseMerge("nodelimiter")
	require.Error(t, err)
}

func TestParseOrganize_EmptyIsValid(t *testing.T) {
	slots, err := ParseOrganize("   ")
	require.NoError(t, err)
	assert.Nil(t, slots)
}

func TestParseOrganize_ParsesLines(t *testing.T) {
	slots, err := ParseOrganize("name\tJohn Smith\nhobby\tsailing and hiking")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "name", slots[0].SubTopic)
	assert.Equal(t, "John Smith", slots[0].Content)
}

func TestParseOrganize_MalformedLine(t *testing.T) {
	_, err := ParseOrganize("justoneword")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ParseFailure))
}

func TestParseSummarizeChat_EmptyIsFailure(t *testing.T) {
	_, err := ParseSummarizeChat("   ")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ParseFailure))
}

func TestParseSummarizeChat_ReturnsTrimmedTip(t *testing.T) {
	tip, err := ParseSummarizeChat("  user discussed travel plans  ")
	require.NoError(t, err)
	assert.Equal(t, "user discussed travel plans", tip)
}

func TestParseEventTags_EmptyIsValid(t *testing.T) {
	tags, err := ParseEventTags("")
	require.NoError(t, err)
	assert.Nil(t, tags)
}

func TestParseEventTags_ParsesPairs(t *testing.T) {
	tags, err := ParseEventTags("milestone\tmoved to Seattle\nmood\texcited")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "milestone", tags[0].Tag)
	assert.Equal(t, "moved to Seattle", tags[0].Value)
}

func TestParseEventTags_Malformed(t *testing.T) {
	_, err := ParseEventTags("onefieldonly")
	require.Error(t, err)
}

func TestParseSummarizeProfile_EmptyIsFailure(t *testing.T) {
	_, err := ParseSummarizeProfile("")
	require.Error(t, err)
}

func TestParseSummarizeProfile_ReturnsContent(t *testing.T) {
	content, err := ParseSummarizeProfile("  consolidated summary  ")
	require.NoError(t, err)
	assert.Equal(t, "consolidated summary", content)
}

func TestParseSlotFilter_EmptyIsZeroIDs(t *testing.T) {
	ids, err := ParseSlotFilter("   ")
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestParseSlotFilter_ParsesLines(t *testing.T) {
	ids, err := ParseSlotFilter("slot-1\nslot-2\n\nslot-3")
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-1", "slot-2", "slot-3"}, ids)
}

func TestStripFence_RemovesCodeFence(t *testing.T) {
	ids, err := ParseSlotFilter("```\nslot-1\nslot-2\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-1", "slot-2"}, ids)
}

func TestStripFence_LeavesPlainTextAlone(t *testing.T) {
	tip, err := ParseSummarizeChat("no fence here")
	require.NoError(t, err)
	assert.Equal(t, "no fence here", tip)
}

func TestContextPack_RendersProfileAndEvents(t *testing.T) {
	slots := []RenderedSlot{{Topic: "basic_info", SubTopic: "name", Content: "John"}}
	events := []RenderedEvent{{DatedTip: "2026-07-30: moved to Seattle", ProfileLines: []string{"basic_info::location: Seattle"}}}
	out := ContextPack(project.LanguageEN, slots, events)
	assert.Contains(t, out, "Profile:")
	assert.Contains(t, out, "basic_info::name: John")
	assert.Contains(t, out, "Recent events:")
	assert.Contains(t, out, "2026-07-30: moved to Seattle")
	assert.Contains(t, out, "  - basic_info::location: Seattle")
}

func TestContextPack_ChineseHeaders(t *testing.T) {
	slots := []RenderedSlot{{Topic: "basic_info", SubTopic: "name", Content: "John"}}
	out := ContextPack(project.LanguageZH, slots, nil)
	assert.Contains(t, out, "用户画像:")
}

func TestContextPack_EmptyInputsProduceEmptyString(t *testing.T) {
	assert.Equal(t, "", ContextPack(project.LanguageEN, nil, nil))
}

func TestRenderSlot(t *testing.T) {
	assert.Equal(t, "basic_info::name: John", RenderSlot("basic_info", "name", "John"))
}
