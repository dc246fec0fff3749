// Package roles defines the fixed four-tier role hierarchy.
package roles

// Role is a privilege tier. Lower rank means higher privilege.
type Role int

const (
	Superuser     Role = 1
	Administrator Role = 2
	Curator       Role = 3
	Learner       Role = 4
)

var names = map[Role]string{
	Superuser:     "superuser",
	Administrator: "administrator",
	Curator:       "curator",
	Learner:       "learner",
}

// Rank returns the numeric privilege rank (Superuser=1 .. Learner=4).
func (r Role) Rank() int {
	return int(r)
}

// AtLeast reports whether r holds at least the privilege of required.
func (r Role) AtLeast(required Role) bool {
	return r.Rank() <= required.Rank()
}

// Above reports whether r strictly outranks other.
func (r Role) Above(other Role) bool {
	return r.Rank() < other.Rank()
}

// Valid reports whether r is one of the four defined roles.
func (r Role) Valid() bool {
	_, ok := names[r]
	return ok
}

func (r Role) String() string {
	if name, ok := names[r]; ok {
		return name
	}
	return "unknown"
}

// All lists the roles in privilege order, highest first.
func All() []Role {
	return []Role{Superuser, Administrator, Curator, Learner}
}

// Assignable lists the roles a creator may hand out: strictly below its own.
func Assignable(creator Role) []Role {
	var out []Role
	for _, r := range All() {
		if creator.Above(r) {
			out = append(out, r)
		}
	}
	return out
}
