// Package identity provides the read-only user/group directory the task
// queue consults for routing. Provisioning happens at bootstrap; nothing in
// the saga mutates the directory afterwards.
package identity

import (
	"fmt"
	"sort"

	"github.com/shoplane/fulfillment/pkg/api"
)

// Directory is an in-memory api.Directory. It is immutable after
// construction, so reads need no locking.
type Directory struct {
	users  map[string]api.User
	groups map[string]api.Group
}

var _ api.Directory = (*Directory)(nil)

// New builds a directory from the given users and groups. Membership is
// reconciled both ways: a user listed in a group's Members gains that group,
// and a group named in a user's Groups gains that member.
func New(users []api.User, groups []api.Group) *Directory {
	d := &Directory{
		users:  make(map[string]api.User, len(users)),
		groups: make(map[string]api.Group, len(groups)),
	}
	for _, u := range users {
		d.users[u.ID] = u
	}
	for _, g := range groups {
		d.groups[g.ID] = g
	}

	for id, g := range d.groups {
		for _, member := range g.Members {
			if u, ok := d.users[member]; ok && !contains(u.Groups, id) {
				u.Groups = append(u.Groups, id)
				d.users[member] = u
			}
		}
	}
	for id, u := range d.users {
		for _, group := range u.Groups {
			if g, ok := d.groups[group]; ok && !contains(g.Members, id) {
				g.Members = append(g.Members, id)
				d.groups[group] = g
			}
		}
	}
	return d
}

func (d *Directory) ListUsers() ([]api.User, error) {
	users := make([]api.User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (d *Directory) GetUser(id string) (api.User, error) {
	u, ok := d.users[id]
	if !ok {
		return api.User{}, fmt.Errorf("user %q: %w", id, api.ErrUserNotFound)
	}
	return u, nil
}

func (d *Directory) ListGroups() ([]api.Group, error) {
	groups := make([]api.Group, 0, len(d.groups))
	for _, g := range d.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func (d *Directory) GetGroup(id string) (api.Group, error) {
	g, ok := d.groups[id]
	if !ok {
		return api.Group{}, fmt.Errorf("group %q: %w", id, api.ErrGroupNotFound)
	}
	return g, nil
}

func (d *Directory) UsersInGroup(id string) ([]api.User, error) {
	g, err := d.GetGroup(id)
	if err != nil {
		return nil, err
	}
	users := make([]api.User, 0, len(g.Members))
	for _, member := range g.Members {
		if u, ok := d.users[member]; ok {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (d *Directory) GroupsForUser(id string) ([]api.Group, error) {
	u, err := d.GetUser(id)
	if err != nil {
		return nil, err
	}
	groups := make([]api.Group, 0, len(u.Groups))
	for _, group := range u.Groups {
		if g, ok := d.groups[group]; ok {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
