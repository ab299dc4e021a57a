package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptguild/promptguild/internal/model"
)

func strp(s string) *string { return &s }

func TestCreatePrompt(t *testing.T) {
	require.NoError(t, CreatePrompt(model.PromptInput{Title: "Summarize", Content: "x"}))

	err := CreatePrompt(model.PromptInput{Title: "  ", Content: "x"})
	assert.True(t, model.IsCode(err, model.CodeInvalidArgument))

	err = CreatePrompt(model.PromptInput{Title: strings.Repeat("a", MaxTitleLen+1)})
	assert.Contains(t, model.MessageOf(err), "title")

	err = CreatePrompt(model.PromptInput{Title: "t", Category: strp(strings.Repeat("c", MaxCategoryLen+1))})
	assert.Contains(t, model.MessageOf(err), "category")

	err = CreatePrompt(model.PromptInput{Title: "t", Content: strings.Repeat("c", MaxContentBytes+1)})
	assert.Contains(t, model.MessageOf(err), "content")
}

func TestUpdatePrompt(t *testing.T) {
	assert.Error(t, UpdatePrompt(model.PromptPatch{}))
	assert.Error(t, UpdatePrompt(model.PromptPatch{Title: strp("")}))
	assert.NoError(t, UpdatePrompt(model.PromptPatch{Content: strp("")}))
}

func TestRating(t *testing.T) {
	for _, r := range []int{1, 3, 5} {
		assert.NoError(t, Rating(r))
	}
	for _, r := range []int{0, 6, -1} {
		assert.True(t, model.IsCode(Rating(r), model.CodeInvalidArgument), "rating %d", r)
	}
}

func TestEmailAndUUID(t *testing.T) {
	assert.NoError(t, Email("ada@example.com"))
	assert.Error(t, Email(""))
	assert.Error(t, Email("not-an-email"))
	assert.Error(t, Email("Ada <ada@example.com>"))

	assert.NoError(t, UUID("promptId", "2b7c8f4e-0a51-4b8e-9a42-3b5f2d1f6c11"))
	assert.Error(t, UUID("promptId", "p1"))
}

func TestMembers(t *testing.T) {
	ok := map[string]model.Role{"alice": model.RoleOwner, "bob": model.RoleEditor}
	require.NoError(t, Members(ok, []string{"alice", "bob"}))

	cases := map[string]struct {
		members map[string]model.Role
		ids     []string
	}{
		"missing id":   {ok, []string{"alice"}},
		"extra id":     {ok, []string{"alice", "bob", "carol"}},
		"duplicate id": {ok, []string{"alice", "bob", "bob"}},
		"bad role":     {map[string]model.Role{"alice": model.RoleOwner, "bob": "admin"}, []string{"alice", "bob"}},
		"no owner":     {map[string]model.Role{"bob": model.RoleEditor}, []string{"bob"}},
		"two owners":   {map[string]model.Role{"alice": model.RoleOwner, "bob": model.RoleOwner}, []string{"alice", "bob"}},
		"empty":        {map[string]model.Role{}, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, model.IsCode(Members(tc.members, tc.ids), model.CodeInvalidArgument))
		})
	}
}

func TestInviteRole(t *testing.T) {
	assert.NoError(t, InviteRole(model.RoleViewer))
	assert.NoError(t, InviteRole(model.RoleEditor))
	assert.Error(t, InviteRole(model.RoleOwner))
}
