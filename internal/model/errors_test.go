package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"coded", InvalidArgument("rating", "must be between 1 and 5"), CodeInvalidArgument},
		{"wrapped coded", fmt.Errorf("rate: %w", Unauthenticated("sign in required")), CodeUnauthenticated},
		{"store not found", fmt.Errorf("get prompt: %w", ErrNotFound), CodeNotFound},
		{"store conflict", ErrConflict, CodeAborted},
		{"unknown", errors.New("boom"), CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CodeOf(tc.err))
		})
	}
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := NotFound("prompt not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsCode(err, CodeNotFound))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "title: is required", MessageOf(InvalidArgument("title", "is required")))
	assert.Equal(t, "upstream call failed: quota exceeded",
		MessageOf(Upstream("upstream call failed", errors.New("quota exceeded"))))
	assert.Equal(t, "storage failure",
		MessageOf(Internal("storage failure", errors.New("insert prompt: UNIQUE constraint failed"))))
	assert.Equal(t, "internal error", MessageOf(errors.New("dial tcp 10.0.0.5:5432: refused")))
	assert.Equal(t, "not found", MessageOf(ErrNotFound))
}

func TestAverageRating(t *testing.T) {
	assert.Equal(t, 0.0, AverageRating(nil))

	p := &Prompt{}
	p.SetRating("u1", 4)
	p.SetRating("u2", 2)
	assert.InDelta(t, 3.0, p.AvgRating, 1e-9)

	p.SetRating("u1", 2)
	assert.Len(t, p.Ratings, 2)
	assert.InDelta(t, 2.0, p.AvgRating, 1e-9)
}

func TestScopeContains(t *testing.T) {
	personal := &Prompt{OwnerID: "alice"}
	shared := &Prompt{OwnerID: "alice", GuildID: "g1"}

	assert.True(t, Personal("alice").Contains(personal))
	assert.False(t, Personal("bob").Contains(personal))
	assert.False(t, Personal("alice").Contains(shared))
	assert.True(t, Shared("g1", "bob").Contains(shared))
	assert.False(t, Shared("g2", "alice").Contains(shared))
}
