package models

// GroupCodeLength is the number of digits in a group join code.
const GroupCodeLength = 6

// Group is the server record of a group.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Code is the 6-digit join code. Unique across groups.
	Code string

	// Name is the display name of the group (e.g. "Roomies").
	Name string

	// MemberIDs lists member user ids in join order. The creator is first.
	MemberIDs []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last membership change.
	UpdatedAt int64
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Member is one entry of a roster as served by the members endpoint.
type Member struct {
	UserID    string
	Name      string
	FirstName string
	LastName  string
	Phone     string
}

// GroupRoster is the client's cached copy of its active group.
type GroupRoster struct {
	GroupID string
	Code    string

	// Members is ordered as served. It is empty until the first successful refresh.
	Members []Member
}

// GroupSummary is one row of the group listing.
type GroupSummary struct {
	GroupID     string
	Code        string
	Name        string
	MemberCount int
}
