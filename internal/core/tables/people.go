package tables

import "github.com/JonMunkholm/courierimport/internal/core"

func init() {
	registerUsers()
}

func registerUsers() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         "users",
			Group:       "People",
			Label:       "Users",
			Description: "Couriers, dispatchers and administrators",
		},
		Aliases:         []string{"user", "utilisateurs", "coursiers", "chauffeurs", "personnel"},
		IdentifierField: core.FieldEmail,
		Fields: []core.CanonicalField{
			core.FieldFirstName, core.FieldLastName, core.FieldEmail,
			core.FieldPhone, core.FieldRole, core.FieldPole,
		},
		NameParts: []core.CanonicalField{core.FieldFirstName, core.FieldLastName},
	})
}
