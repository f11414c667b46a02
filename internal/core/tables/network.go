package tables

import "github.com/JonMunkholm/courierimport/internal/core"

func init() {
	registerSites()
	registerPoles()
}

func registerSites() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         "sites",
			Group:       "Network",
			Label:       "Sites",
			Description: "Pickup and delivery sites: laboratories, collection points, clients",
		},
		Aliases: []string{"site", "lieux", "clients", "points de collecte", "laboratoires"},
		Fields: []core.CanonicalField{
			core.FieldName, core.FieldType, core.FieldPole,
			core.FieldAddress, core.FieldPostalCode, core.FieldCity,
			core.FieldPhone, core.FieldEmail, core.FieldHours,
		},
	})
}

func registerPoles() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         "poles",
			Group:       "Network",
			Label:       "Poles",
			Description: "Regional logistics poles",
		},
		Aliases: []string{"pole", "agences", "secteurs"},
		Fields: []core.CanonicalField{
			core.FieldName, core.FieldAddress, core.FieldPostalCode,
			core.FieldCity, core.FieldPhone,
		},
	})
}
