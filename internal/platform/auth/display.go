package auth

// RoleDisplay bundles the presentation attributes of a role.
type RoleDisplay struct {
	Role  Role   `json:"role"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Style string `json:"style"`
}

var roleDisplays = map[Role]RoleDisplay{
	RolePatient: {Role: RolePatient, Label: "Patient", Icon: "👤", Style: "role-patient"},
	RoleDoctor:  {Role: RoleDoctor, Label: "Doctor", Icon: "🩺", Style: "role-doctor"},
	RoleAdmin:   {Role: RoleAdmin, Label: "Administrator", Icon: "🛡️", Style: "role-admin"},
}

// Display returns the presentation attributes for r; unknown roles render as patient.
func Display(r Role) RoleDisplay {
	if d, ok := roleDisplays[r]; ok {
		return d
	}
	return roleDisplays[RolePatient]
}

func Label(r Role) string { return Display(r).Label }

func Icon(r Role) string { return Display(r).Icon }

func Style(r Role) string { return Display(r).Style }
