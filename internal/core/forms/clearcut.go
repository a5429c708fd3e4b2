package forms

import "github.com/JonMunkholm/RAP/internal/core"

func init() {
	registerClearcut()
}

func registerClearcut() {
	core.RegisterForm(core.FormDefinition{
		Info: core.FormInfo{
			Key:      "clearcut",
			SilvSys:  core.Clearcut,
			Label:    "Clearcut Survey",
			FileName: "Clearcut_Survey_v2021.csv",
		},
		FieldSpecs: surveyFieldSpecs(core.Clearcut),
		// The 2021 clearcut export misspells the plot 6 photo column.
		Renames: map[string]string{
			"PhotosPot6":           "PhotosPlot6",
			"ProjIDManualOverride": OverrideProjectField,
		},
		BuildRecord: func(row []string, idx core.HeaderIndex) (core.SurveyRecord, error) {
			return buildSurveyRecord(core.Clearcut, row, idx)
		},
	})
}
