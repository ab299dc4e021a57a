// Package validate holds input rules shared by the services and the HTTP layer.
// Every failure is a field-tagged model.InvalidArgument.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-openapi/strfmt"

	"github.com/promptguild/promptguild/internal/model"
)

const (
	MaxTitleLen     = 200
	MaxCategoryLen  = 100
	MaxContentBytes = 100_000
	MaxGuildNameLen = 100
	MinRating       = 1
	MaxRating       = 5
)

var emailRx = regexp.MustCompile(`^[^@\s<>]+@[^@\s<>]+\.[^@\s<>]+$`)

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return model.InvalidArgument(field, "is required")
	}
	return nil
}

// MaxLen counts characters, not bytes.
func MaxLen(field string, v *string, limit int) error {
	if v == nil {
		return nil
	}
	if utf8.RuneCountInString(*v) > limit {
		return model.InvalidArgument(field, fmt.Sprintf("exceeds %d characters", limit))
	}
	return nil
}

func Title(v string) error {
	if err := NonEmpty("title", v); err != nil {
		return err
	}
	return MaxLen("title", &v, MaxTitleLen)
}

func Content(v string) error {
	if len(v) > MaxContentBytes {
		return model.InvalidArgument("content", fmt.Sprintf("exceeds %d bytes", MaxContentBytes))
	}
	return nil
}

func Email(v string) error {
	if v == "" {
		return model.InvalidArgument("email", "is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) || !strfmt.IsEmail(v) {
		return model.InvalidArgument("email", "invalid email")
	}
	return nil
}

// UUID validates a path or body identifier generated by the service.
func UUID(field, v string) error {
	if v == "" {
		return model.InvalidArgument(field, "is required")
	}
	if !strfmt.IsUUID(v) {
		return model.InvalidArgument(field, "must be a UUID")
	}
	return nil
}

func Rating(r int) error {
	if r < MinRating || r > MaxRating {
		return model.InvalidArgument("rating", fmt.Sprintf("must be between %d and %d", MinRating, MaxRating))
	}
	return nil
}

// -------- Request specific helpers ----------

func CreatePrompt(in model.PromptInput) error {
	if err := Title(in.Title); err != nil {
		return err
	}
	if err := Content(in.Content); err != nil {
		return err
	}
	return MaxLen("category", in.Category, MaxCategoryLen)
}

func UpdatePrompt(p model.PromptPatch) error {
	if p.IsEmpty() {
		return model.InvalidArgument("patch", "no fields to update")
	}
	if p.Title != nil {
		if err := Title(*p.Title); err != nil {
			return err
		}
	}
	if p.Content != nil {
		if err := Content(*p.Content); err != nil {
			return err
		}
	}
	return MaxLen("category", p.Category, MaxCategoryLen)
}

func GuildName(name string) error {
	if err := NonEmpty("name", name); err != nil {
		return err
	}
	return MaxLen("name", &name, MaxGuildNameLen)
}

// InviteRole accepts the roles that can be granted to a new or existing member.
func InviteRole(r model.Role) error {
	if r != model.RoleEditor && r != model.RoleViewer {
		return model.InvalidArgument("role", "must be editor or viewer")
	}
	return nil
}

// Members checks that memberIDs is exactly the key set of members without
// duplicates, every role is known, and there is exactly one owner.
func Members(members map[string]model.Role, memberIDs []string) error {
	if len(members) == 0 {
		return model.InvalidArgument("members", "must not be empty")
	}
	seen := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, dup := seen[id]; dup {
			return model.InvalidArgument("memberIds", fmt.Sprintf("duplicate id %q", id))
		}
		seen[id] = struct{}{}
		if _, ok := members[id]; !ok {
			return model.InvalidArgument("memberIds", fmt.Sprintf("%q is not in members", id))
		}
	}
	owners := 0
	for id, role := range members {
		if strings.TrimSpace(id) == "" {
			return model.InvalidArgument("members", "empty user id")
		}
		if _, ok := seen[id]; !ok {
			return model.InvalidArgument("memberIds", fmt.Sprintf("missing %q", id))
		}
		if !role.Valid() {
			return model.InvalidArgument("members", fmt.Sprintf("invalid role %q for %q", role, id))
		}
		if role == model.RoleOwner {
			owners++
		}
	}
	if owners != 1 {
		return model.InvalidArgument("members", "must have exactly one owner")
	}
	return nil
}
