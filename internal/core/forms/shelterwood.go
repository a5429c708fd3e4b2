package forms

import "github.com/JonMunkholm/RAP/internal/core"

func init() {
	registerShelterwood()
}

func registerShelterwood() {
	core.RegisterForm(core.FormDefinition{
		Info: core.FormInfo{
			Key:      "shelterwood",
			SilvSys:  core.Shelterwood,
			Label:    "Shelterwood Survey",
			FileName: "Shelterwood_Survey_v2021.csv",
		},
		FieldSpecs: surveyFieldSpecs(core.Shelterwood),
		Renames: map[string]string{
			"ProjIDManualOverride": OverrideProjectField,
		},
		BuildRecord: func(row []string, idx core.HeaderIndex) (core.SurveyRecord, error) {
			return buildSurveyRecord(core.Shelterwood, row, idx)
		},
	})
}
