package core

import "sort"

type member struct {
	user  User
	conns int
}

// Registry indexes which users are present in which instance.
// An instance key exists only while at least one user is present in it.
//
// Registry is owned by the hub goroutine and is not safe for concurrent use.
type Registry struct {
	instances map[string][]*member
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string][]*member)}
}

// AddUser records user as present in instance, creating the instance entry if needed.
// A user already present gains another connection instead of a second entry.
// Returns true if the user was not present before.
func (r *Registry) AddUser(instance string, user User) bool {
	for _, m := range r.instances[instance] {
		if m.user.ID == user.ID {
			m.conns++
			return false
		}
	}
	r.instances[instance] = append(r.instances[instance], &member{user: user, conns: 1})
	return true
}

// RemoveUser drops one connection of the first member with a matching id.
// The member is removed once its last connection is gone and the instance entry
// is deleted when its member list becomes empty. Unknown instances and users are a no-op.
// Returns true if the user is no longer present in the instance.
func (r *Registry) RemoveUser(instance, userID string) bool {
	members, ok := r.instances[instance]
	if !ok {
		return false
	}
	for i, m := range members {
		if m.user.ID != userID {
			continue
		}
		m.conns--
		if m.conns > 0 {
			return false
		}
		members = append(members[:i], members[i+1:]...)
		if len(members) == 0 {
			delete(r.instances, instance)
		} else {
			r.instances[instance] = members
		}
		return true
	}
	return false
}

// ListUsers returns an ordered snapshot of the users present in instance.
func (r *Registry) ListUsers(instance string) []User {
	members := r.instances[instance]
	users := make([]User, 0, len(members))
	for _, m := range members {
		users = append(users, m.user)
	}
	return users
}

// Has reports whether the instance currently has any members.
func (r *Registry) Has(instance string) bool {
	_, ok := r.instances[instance]
	return ok
}

// Instances returns the ids of all populated instances in sorted order.
func (r *Registry) Instances() []string {
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of populated instances.
func (r *Registry) Len() int {
	return len(r.instances)
}
