package tables

import "github.com/JonMunkholm/courierimport/internal/core"

func init() {
	registerRoutes()
	registerVehicles()
}

func registerRoutes() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         "routes",
			Group:       "Operations",
			Label:       "Routes",
			Description: "Courier rounds and their opening hours",
		},
		Aliases: []string{"route", "tournees", "tournee", "circuits"},
		Fields: []core.CanonicalField{
			core.FieldTour, core.FieldPole, core.FieldOpeningTime,
			core.FieldClosingTime, core.FieldComment,
		},
		// Route exports name rounds by their number only.
		NameParts: []core.CanonicalField{core.FieldTour},
	})
}

func registerVehicles() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         "vehicles",
			Group:       "Operations",
			Label:       "Vehicles",
			Description: "Fleet vehicles and their inspection dates",
		},
		Aliases:         []string{"vehicle", "vehicules", "flotte", "parc"},
		IdentifierField: core.FieldLicensePlate,
		Fields: []core.CanonicalField{
			core.FieldLicensePlate, core.FieldBrand, core.FieldModel,
			core.FieldPole, core.FieldInspectionDate,
		},
		NameParts: []core.CanonicalField{core.FieldBrand, core.FieldModel, core.FieldLicensePlate},
	})
}
