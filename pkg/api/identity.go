package api

// User is a member of the identity directory. Group membership is
// many-to-many and externally managed; the saga only reads it.
type User struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Groups    []string `json:"groups"`
}

// Group is a named set of users, any of whom may claim a task routed to it.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Members []string `json:"members"`
}

// Directory is the read-only identity surface consumed by operator tooling.
// "Not found" is reported with ErrUserNotFound / ErrGroupNotFound; directory
// reads never fail for any other reason than store unavailability.
type Directory interface {
	ListUsers() ([]User, error)
	GetUser(id string) (User, error)
	ListGroups() ([]Group, error)
	GetGroup(id string) (Group, error)
	UsersInGroup(id string) ([]User, error)
	GroupsForUser(id string) ([]Group, error)
}
