package model

import (
	"sort"
	"time"
)

// ScopeKind tells whether a prompt lives in a user's personal library or in a guild.
type ScopeKind string

const (
	ScopePersonal ScopeKind = "personal"
	ScopeShared   ScopeKind = "shared"
)

// Scope identifies where a prompt lives and who is acting on it.
// For personal scope ActorID is the owner; for shared scope it is the acting member.
type Scope struct {
	Kind    ScopeKind
	ActorID string
	GuildID string
}

// Personal returns the personal scope of ownerID.
func Personal(ownerID string) Scope { return Scope{Kind: ScopePersonal, ActorID: ownerID} }

// Shared returns the scope of guildID with authorID acting.
func Shared(guildID, authorID string) Scope {
	return Scope{Kind: ScopeShared, ActorID: authorID, GuildID: guildID}
}

// IsShared reports whether the scope refers to a guild.
func (s Scope) IsShared() bool { return s.Kind == ScopeShared }

// Contains reports whether p belongs to this scope.
func (s Scope) Contains(p *Prompt) bool {
	if p == nil {
		return false
	}
	if s.IsShared() {
		return p.GuildID == s.GuildID
	}
	return p.GuildID == "" && p.OwnerID == s.ActorID
}

// Prompt is a stored reusable prompt with usage and rating metadata.
type Prompt struct {
	PromptID  string         `json:"id"`
	OwnerID   string         `json:"ownerId"`
	GuildID   string         `json:"guildId,omitempty"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Category  *string        `json:"category,omitempty"`
	UseCount  int64          `json:"useCount"`
	Ratings   map[string]int `json:"ratings"`
	AvgRating float64        `json:"avgRating"`
	AISummary string         `json:"aiSummary,omitempty"`
	AIUseCase string         `json:"aiUseCase,omitempty"`
	AITags    []string       `json:"aiTags,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	// Revision is bumped by every write and used for optimistic transactions.
	Revision int64 `json:"-"`
}

// PromptInput carries the caller-supplied fields of a new prompt.
type PromptInput struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Category *string `json:"category,omitempty"`
}

// CategoryOrNil returns the input category, treating an empty one as unset.
func (in PromptInput) CategoryOrNil() *string {
	if in.Category == nil || *in.Category == "" {
		return nil
	}
	c := *in.Category
	return &c
}

// PromptPatch is a partial update; nil fields are left untouched.
// An empty Category clears the category.
type PromptPatch struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	Category *string `json:"category,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p PromptPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Category == nil
}

// Apply writes the non-nil fields of the patch onto pr.
func (p PromptPatch) Apply(pr *Prompt) {
	if p.Title != nil {
		pr.Title = *p.Title
	}
	if p.Content != nil {
		pr.Content = *p.Content
	}
	switch {
	case p.Category == nil:
	case *p.Category == "":
		pr.Category = nil
	default:
		c := *p.Category
		pr.Category = &c
	}
}

// SetRating records rating for userID (overwriting any earlier one) and recomputes AvgRating.
func (pr *Prompt) SetRating(userID string, rating int) {
	if pr.Ratings == nil {
		pr.Ratings = make(map[string]int)
	}
	pr.Ratings[userID] = rating
	pr.AvgRating = AverageRating(pr.Ratings)
}

// AverageRating is the arithmetic mean of all ratings, or 0 when there are none.
func AverageRating(ratings map[string]int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

// Version is an immutable snapshot of a prompt taken before an update.
type Version struct {
	VersionID string    `json:"id"`
	PromptID  string    `json:"promptId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  *string   `json:"category,omitempty"`
	SavedAt   time.Time `json:"savedAt"`
}

// Analysis is the AI generated metadata written back onto a prompt.
type Analysis struct {
	Summary string   `json:"summary"`
	UseCase string   `json:"useCase"`
	Tags    []string `json:"tags"`
}

// Role is a guild member's permission level.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// CanEdit reports whether the role may create, update or delete shared prompts.
func (r Role) CanEdit() bool { return r == RoleOwner || r == RoleEditor }

// Guild is a named shared collection of prompts.
type Guild struct {
	GuildID   string          `json:"id"`
	Name      string          `json:"name"`
	Members   map[string]Role `json:"members"`
	MemberIDs []string        `json:"memberIds"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`

	Revision int64 `json:"-"`
}

// RoleOf returns the role of userID and whether the user is a member.
func (g *Guild) RoleOf(userID string) (Role, bool) {
	r, ok := g.Members[userID]
	return r, ok
}

// Owner returns the user id holding the owner role, or "" if none.
func (g *Guild) Owner() string {
	for id, r := range g.Members {
		if r == RoleOwner {
			return id
		}
	}
	return ""
}

// MemberIDsOf returns the sorted key set of members.
func MemberIDsOf(members map[string]Role) []string {
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// User is a user directory record, written at sign-in.
type User struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}
