package gate

// EntityKind discriminates the concrete provider entity classes.
type EntityKind string

const (
	// EntityUser identifies a private user account.
	EntityUser EntityKind = "user"
	// EntityGroup identifies a basic group or megagroup.
	EntityGroup EntityKind = "group"
	// EntityChannel identifies a broadcast channel.
	EntityChannel EntityKind = "channel"
)

// ResolvedEntity is the concrete chat, channel, or user behind a caller
// identifier, together with the capability flags the boundary layer needs.
type ResolvedEntity struct {
	Kind     EntityKind `json:"kind"`
	ID       int64      `json:"id"`
	Title    string     `json:"title"`
	Username string     `json:"username,omitempty"`
	Phone    string     `json:"phone,omitempty"`

	// HasMembers reports whether the entity supports participant listing.
	HasMembers bool `json:"has_members"`
	// HasInviteLink reports whether the entity supports invite link export.
	HasInviteLink bool `json:"has_invite_link"`
}

// IsUser reports whether the entity is a private user.
func (e ResolvedEntity) IsUser() bool {
	return e.Kind == EntityUser
}

// IsGroup reports whether the entity is a basic group or megagroup.
func (e ResolvedEntity) IsGroup() bool {
	return e.Kind == EntityGroup
}

// IsChannel reports whether the entity is a broadcast channel.
func (e ResolvedEntity) IsChannel() bool {
	return e.Kind == EntityChannel
}
