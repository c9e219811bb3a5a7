package models

import (
	"encoding/json"
	"strings"
)

// Role is the user's portal role. The backend sends it either as a bare
// string ("CITIZEN") or as an object {"id": "...", "name": "CITIZEN"}
// depending on the endpoint; both forms normalize here at the JSON boundary
// so the rest of the client only ever sees a structured value.
type Role struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Well-known role names used by the portal.
const (
	RoleCitizen  = "CITIZEN"
	RoleOfficial = "OFFICIAL"
	RoleLeader   = "LEADER"
	RoleAdmin    = "ADMIN"
)

func (r *Role) UnmarshalJSON(data []byte) error {
	// bare string form
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.ID = ""
		r.Name = s
		return nil
	}
	type alias Role
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Role(a)
	return nil
}

func (r Role) MarshalJSON() ([]byte, error) {
	if r.ID == "" {
		return json.Marshal(r.Name)
	}
	type alias Role
	return json.Marshal(alias(r))
}

// IsZero reports whether no role was supplied.
func (r Role) IsZero() bool { return r.ID == "" && r.Name == "" }

// Is compares role names case-insensitively.
func (r Role) Is(name string) bool { return strings.EqualFold(r.Name, name) }
