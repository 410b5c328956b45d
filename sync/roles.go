package sync

// NaturalPersonRoleType tags a rol that identifies a citizen by BSN.
const NaturalPersonRoleType = "natuurlijk_persoon"

var roleCodes = map[string]string{
	"REGISTERED":                      "I",
	"AUTHORITY_HOLDER":                "G",
	"ADULT_CHILD_LIVING_WITH_PARENTS": "K",
	"ADULT_AUTHORIZED_REPRESENTATIVE": "M",
	"PARTNER":                         "P",
	"PARENT_LIVING_WITH_ADULT_CHILD":  "O",
}

// TranslateRole maps a form role to its single letter declaration code.
// Unknown codes are returned unchanged.
func TranslateRole(code string) string {
	if translated, exists := roleCodes[code]; exists {
		return translated
	}
	return code
}

// DeclarantBSN returns the BSN of the first natural person role.
func DeclarantBSN(c Case) (string, bool) {
	for _, role := range c.Roles() {
		if role.Type == NaturalPersonRoleType {
			return role.BSN, role.BSN != ""
		}
	}
	return "", false
}
