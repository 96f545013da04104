package pipeline

import (
	"context"
	"testing"

	"github.com/memobase-dev/memobase-go/blob"
	"github.com/memobase-dev/memobase-go/buffer"
	"github.com/memobase-dev/memobase-go/event"
	"github.com/memobase-dev/memobase-go/profile"
	"github.com/memobase-dev/memobase-go/project"
	"github.com/memobase-dev/memobase-go/prompt"
	"github.com/memobase-dev/memobase-go/tokencount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobStore struct {
	blobs map[string]*blob.Blob
}

func (f *fakeBlobStore) PutBlob(ctx context.Context, projectID, userID string, b *blob.Blob) (string, error) {
	return "", nil
}
func (f *fakeBlobStore) GetBlob(ctx context.Context, projectID, userID, blobID string) (*blob.Blob, error) {
	b, ok := f.blobs[blobID]
	if !ok {
		return nil, assert.AnError
	}
	return b, nil
}
func (f *fakeBlobStore) DeleteBlob(ctx context.Context, projectID, userID, blobID string) error {
	return nil
}
func (f *fakeBlobStore) ListBlobs(ctx context.Context, projectID, userID string, t blob.Type, page, pageSize int) ([]string, error) {
	return nil, nil
}
func (f *fakeBlobStore) DeleteUserBlobs(ctx context.Context, projectID, userID string) error {
	return nil
}

func TestPipeline_Truncate_KeepsNewestSuffix(t *testing.T) {
	store := &fakeBlobStore{blobs: map[string]*blob.Blob{
		"b1": {Type: blob.TypeDoc, Doc: &blob.Doc{Text: "old"}},
		"b2": {Type: blob.TypeDoc, Doc: &blob.Doc{Text: "mid"}},
		"b3": {Type: blob.TypeDoc, Doc: &blob.Doc{Text: "new"}},
	}}
	p := &Pipeline{Blobs: store}
	entries := []*buffer.Entry{
		{BlobID: "b1", TokenSize: 50},
		{BlobID: "b2", TokenSize: 50},
		{BlobID: "b3", TokenSize: 10},
	}
	kept, err := p.truncate(context.Background(), "proj", "user", entries, 15)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "new", kept[0].Doc.Text)
}

func TestPipeline_Truncate_NoLimitKeepsAll(t *testing.T) {
	store := &fakeBlobStore{blobs: map[string]*blob.Blob{
		"b1": {Type: blob.TypeDoc, Doc: &blob.Doc{Text: "a"}},
	}}
	p := &Pipeline{Blobs: store}
	entries := []*buffer.Entry{{BlobID: "b1", TokenSize: 1000000}}
	kept, err := p.truncate(context.Background(), "proj", "user", entries, 0)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestPipeline_Truncate_PropagatesBlobLoadError(t *testing.T) {
	store := &fakeBlobStore{blobs: map[string]*blob.Blob{}}
	p := &Pipeline{Blobs: store}
	entries := []*buffer.Entry{{BlobID: "missing", TokenSize: 1}}
	_, err := p.truncate(context.Background(), "proj", "user", entries, 10)
	require.Error(t, err)
}

func TestRenderTranscript_JoinsBlobs(t *testing.T) {
	blobs := []*blob.Blob{
		{Type: blob.TypeDoc, Doc: &blob.Doc{Text: "first"}},
		{Type: blob.TypeDoc, Doc: &blob.Doc{Text: "second"}},
	}
	out := renderTranscript(blobs)
	assert.Equal(t, "first\nsecond", out)
}

func TestResolveDeltaEntries(t *testing.T) {
	delta := profile.Delta{
		Adds:    []profile.NewSlot{{Attrs: profile.Attrs{Topic: "basic_info", SubTopic: "name"}}},
		Updates: []profile.UpdateSlot{{Attrs: &profile.Attrs{Topic: "interest", SubTopic: "hobby"}}},
		Deletes: []string{"old-slot"},
	}
	commit := &profile.CommitResult{
		AddedIDs:   []string{"new-slot"},
		UpdatedIDs: []string{"updated-slot"},
		DeletedIDs: []string{"old-slot"},
	}
	entries := resolveDeltaEntries(delta, commit)
	require.Len(t, entries, 3)
	assert.Equal(t, event.ActionAdd, entries[0].Action)
	assert.Equal(t, "basic_info", entries[0].Topic)
	assert.Equal(t, event.ActionUpdate, entries[1].Action)
	assert.Equal(t, "interest", entries[1].Topic)
	assert.Equal(t, event.ActionDelete, entries[2].Action)
	assert.Equal(t, "old-slot", entries[2].SlotID)
}

func TestDeltaSummary(t *testing.T) {
	entries := []event.DeltaEntry{
		{Action: event.ActionAdd, Topic: "basic_info", SubTopic: "name"},
		{Action: event.ActionDelete, Topic: "interest", SubTopic: "hobby"},
	}
	summary := deltaSummary(entries)
	assert.Contains(t, summary, "add basic_info::name")
	assert.Contains(t, summary, "delete interest::hobby")
}

func TestPipeline_ConcurrencyDefault(t *testing.T) {
	p := &Pipeline{}
	assert.Equal(t, 4, p.concurrency())
	p.MaxMergeConcurrency = 8
	assert.Equal(t, 8, p.concurrency())
}

func testProject(t *testing.T) *project.Project {
	t.Helper()
	cfg, err := project.ParseConfig(nil)
	require.NoError(t, err)
	return &project.Project{ID: "proj1", Config: cfg}
}

func TestProfilePath_AddsFactsWithNoExistingMatch(t *testing.T) {
	p := &Pipeline{Counter: tokencount.MustDefault()}
	proj := testProject(t)
	facts := []prompt.Fact{
		{Topic: "basic_info", SubTopic: "name", Memo: "John"},
		{Topic: "interest", SubTopic: "hobby", Memo: "sailing"},
	}
	delta, preview := p.profilePath(context.Background(), proj, "user1", nil, facts)
	assert.Len(t, delta.Adds, 2)
	assert.Empty(t, delta.Updates)
	assert.Len(t, preview, 2)
}

func TestProfilePath_DropsInvalidFact(t *testing.T) {
	p := &Pipeline{Counter: tokencount.MustDefault()}
	proj := testProject(t)
	facts := []prompt.Fact{{Topic: "", SubTopic: "", Memo: "no topic"}}
	delta, _ := p.profilePath(context.Background(), proj, "user1", nil, facts)
	assert.Empty(t, delta.Adds)
}

func TestProfilePath_StrictModeDropsOutOfTaxonomyFact(t *testing.T) {
	p := &Pipeline{Counter: tokencount.MustDefault()}
	proj := testProject(t)
	proj.Config.ProfileStrictMode = true
	facts := []prompt.Fact{{Topic: "nonexistent_topic", SubTopic: "sub", Memo: "memo"}}
	delta, _ := p.profilePath(context.Background(), proj, "user1", nil, facts)
	assert.Empty(t, delta.Adds)
}

func TestEventPath_SkipsWhenSummaryDisabled(t *testing.T) {
	p := &Pipeline{}
	proj := testProject(t)
	tip, tags := p.eventPath(context.Background(), proj, "transcript text", 100, "")
	assert.Equal(t, "", tip)
	assert.Nil(t, tags)
}

func TestEventPath_SkipsWhenBelowMinTokens(t *testing.T) {
	p := &Pipeline{}
	proj := testProject(t)
	proj.Config.EnableEventSummary = true
	proj.Config.MinEventSummaryTokens = 1000
	tip, tags := p.eventPath(context.Background(), proj, "short", 10, "")
	assert.Equal(t, "", tip)
	assert.Nil(t, tags)
}

func TestOrganize_NoopWhenUnderLimit(t *testing.T) {
	p := &Pipeline{}
	proj := testProject(t)
	delta := &profile.Delta{Adds: []profile.NewSlot{{Attrs: profile.Attrs{Topic: "interest", SubTopic: "hobby"}, Content: "sailing"}}}
	p.organize(context.Background(), proj, nil, delta)
	assert.Len(t, delta.Adds, 1)
}

func TestOrganize_NoopWhenMaxSubtopicsDisabled(t *testing.T) {
	p := &Pipeline{}
	proj := testProject(t)
	proj.Config.MaxSubtopics = 0
	delta := &profile.Delta{Adds: make([]profile.NewSlot, 20)}
	p.organize(context.Background(), proj, nil, delta)
	assert.Len(t, delta.Adds, 20)
}

func TestResummarize_NoopWhenUnderLimit(t *testing.T) {
	p := &Pipeline{Counter: tokencount.MustDefault()}
	proj := testProject(t)
	delta := &profile.Delta{Adds: []profile.NewSlot{{Content: "short"}}}
	p.resummarize(context.Background(), proj, delta)
	assert.Equal(t, "short", delta.Adds[0].Content)
}

func TestResummarize_NoopWhenLimitDisabled(t *testing.T) {
	p := &Pipeline{Counter: tokencount.MustDefault()}
	proj := testProject(t)
	proj.Config.MaxPreProfileTokenSize = 0
	delta := &profile.Delta{Adds: []profile.NewSlot{{Content: "arbitrarily long content that would otherwise trigger summarization"}}}
	p.resummarize(context.Background(), proj, delta)
	assert.Contains(t, delta.Adds[0].Content, "arbitrarily long")
}

func TestExtractSystemPrompt_MentionsExistingSlotCount(t *testing.T) {
	proj := testProject(t)
	existing := []*profile.Slot{{Attrs: profile.Attrs{Topic: "basic_info", SubTopic: "name"}}}
	sp := extractSystemPrompt(proj, existing)
	assert.Contains(t, sp, "1 known profile slots")
}

func TestExtractSystemPrompt_ChineseLanguageHint(t *testing.T) {
	proj := testProject(t)
	proj.Config.Language = project.LanguageZH
	sp := extractSystemPrompt(proj, nil)
	assert.Contains(t, sp, "Chinese")
}

func TestMergeSystemPrompt_NamesCurrentMemo(t *testing.T) {
	existing := &profile.Slot{Attrs: profile.Attrs{Topic: "basic_info", SubTopic: "name"}, Content: "John"}
	sp := mergeSystemPrompt(testProject(t), existing)
	assert.Contains(t, sp, "basic_info::name")
	assert.Contains(t, sp, `"John"`)
}

func TestSummarizeChatSystemPrompt_Languages(t *testing.T) {
	proj := testProject(t)
	assert.Contains(t, summarizeChatSystemPrompt(proj), "Summarize")
	proj.Config.Language = project.LanguageZH
	assert.Contains(t, summarizeChatSystemPrompt(proj), "概括")
}

func TestEventTagSystemPrompt_ListsTagNames(t *testing.T) {
	proj := testProject(t)
	proj.Config.EventTags = []project.EventTagDecl{{Name: "milestone"}}
	sp := eventTagSystemPrompt(proj)
	assert.Contains(t, sp, "milestone")
}
