package access

import "time"

// Role is the privilege tier assigned to a user within a project.
type Role string

const (
	// RoleReader can only view runbooks.
	RoleReader Role = "reader"
	// RoleContributor can read, write and delete runbooks.
	RoleContributor Role = "contributor"
	// RoleManager can additionally administer security settings.
	RoleManager Role = "manager"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleReader, RoleContributor, RoleManager:
		return true
	}
	return false
}

// DisplayName returns the human readable role label.
func (r Role) DisplayName() string {
	switch r {
	case RoleManager:
		return "Manager"
	case RoleContributor:
		return "Contributor"
	case RoleReader:
		return "Reader"
	}
	return "Unknown"
}

// AssignmentRecord is the persisted role assignment document, one per
// project. Membership across the three sets is exclusive: a user id appears
// in at most one of them.
type AssignmentRecord struct {
	Managers     []string  `json:"managers"`
	Contributors []string  `json:"contributors"`
	Readers      []string  `json:"readers"`
	DefaultRole  Role      `json:"defaultRole"`
	CreatedBy    string    `json:"createdBy"`
	CreatedDate  time.Time `json:"createdDate"`
}

// RoleOf resolves the explicit role of userID, manager set first.
func (r *AssignmentRecord) RoleOf(userID string) (Role, bool) {
	switch {
	case contains(r.Managers, userID):
		return RoleManager, true
	case contains(r.Contributors, userID):
		return RoleContributor, true
	case contains(r.Readers, userID):
		return RoleReader, true
	}
	return "", false
}

func (r *AssignmentRecord) removeFromAll(userID string) {
	r.Managers = remove(r.Managers, userID)
	r.Contributors = remove(r.Contributors, userID)
	r.Readers = remove(r.Readers, userID)
}

func (r *AssignmentRecord) addToRole(userID string, role Role) {
	switch role {
	case RoleManager:
		r.Managers = appendUnique(r.Managers, userID)
	case RoleContributor:
		r.Contributors = appendUnique(r.Contributors, userID)
	case RoleReader:
		r.Readers = appendUnique(r.Readers, userID)
	}
}

func (r *AssignmentRecord) clone() *AssignmentRecord {
	if r == nil {
		return nil
	}
	dup := *r
	dup.Managers = append([]string(nil), r.Managers...)
	dup.Contributors = append([]string(nil), r.Contributors...)
	dup.Readers = append([]string(nil), r.Readers...)
	return &dup
}

// Assignments is a read-only snapshot of the assignment record.
type Assignments struct {
	Managers     []string `json:"managers"`
	Contributors []string `json:"contributors"`
	Readers      []string `json:"readers"`
	DefaultRole  Role     `json:"defaultRole"`
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	if contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
