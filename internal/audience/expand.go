package audience

import "github.com/foxzi/alumnet/internal/models"

// compositeMembers maps a base tag to the composite tags that contain it
var compositeMembers = map[models.PersonType][]models.PersonType{
	models.PersonStaff:  {models.PersonStaffAdmin, models.PersonStaffAlumni},
	models.PersonAlumni: {models.PersonStaffAlumni},
	models.PersonAdmin:  {models.PersonStaffAdmin},
}

// ExpandComposite widens each requested base tag with the composite tags that
// include it, e.g. STAFF also selects STAFF_ADMIN and STAFF_ALUMNI.
// The result keeps request order and has no duplicates. An empty input stays
// empty so "no restriction" is preserved.
func ExpandComposite(types []models.PersonType) []models.PersonType {
	if len(types) == 0 {
		return types
	}
	seen := make(map[models.PersonType]struct{}, len(types))
	out := make([]models.PersonType, 0, len(types))
	add := func(t models.PersonType) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range types {
		add(t)
		for _, c := range compositeMembers[t] {
			add(c)
		}
	}
	return out
}
