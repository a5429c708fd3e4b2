package forms

import (
	"fmt"

	"github.com/JonMunkholm/RAP/internal/core"
)

// Column names shared by both 2021 survey forms.
const (
	ClusterField         = "ClusterNumber"
	UserProjectField     = "ProjectID02"
	OverrideProjectField = "prj_id_override"
	LatitudeField        = "latitude"
	LongitudeField       = "longitude"
	CreationField        = "CreationDateTime"
	TestDataField        = "TestData"

	MoistureField       = "MoistureEcosite"
	NutrientField       = "NutrientEcosite01"
	EcositeCommentField = "CommentsEcosite"
	GeneralCommentField = "GeneralComment"
	ClusterPhotoField   = "ClusterPhoto"

	SurveyorsField = "Surveyors"
	FMUField       = "ForestManagementUnit"
	DistrictField  = "DistrictName"
)

// UnoccupiedField returns the "plot is unoccupied" column of plot n.
func UnoccupiedField(plot int) string { return fmt.Sprintf("UnoccupiedPlot%d", plot) }

// UnoccupiedReasonField returns the unoccupied reason column of plot n.
func UnoccupiedReasonField(plot int) string { return fmt.Sprintf("UnoccupiedreasonPlot%d", plot) }

// SpeciesNameField returns the species name column of a slot on a plot.
func SpeciesNameField(slot, plot int) string {
	return fmt.Sprintf("Species%dSpeciesNamePlot%d", slot, plot)
}

// SpeciesCountField returns the tree count column of a slot on a plot.
func SpeciesCountField(slot, plot int) string {
	return fmt.Sprintf("Species%dNumberofTreesPlot%d", slot, plot)
}

// PlotCommentField returns the comment column of plot n.
func PlotCommentField(plot int) string { return fmt.Sprintf("CommentsPlot%d", plot) }

// PlotPhotosField returns the photo list column of plot n.
func PlotPhotosField(plot int) string { return fmt.Sprintf("PhotosPlot%d", plot) }

// surveyFieldSpecs lists the columns of a survey form. Counts, coordinates,
// Yes/No flags and timestamps are checked later so a bad value costs one
// slot, one location or one flag instead of the whole row.
func surveyFieldSpecs(s core.SilvSys) []core.FieldSpec {
	specs := []core.FieldSpec{
		{Name: ClusterField, Type: core.FieldText, Required: true},
		{Name: UserProjectField, Type: core.FieldText, AllowEmpty: true},
		{Name: OverrideProjectField, Type: core.FieldText, AllowEmpty: true},
		{Name: LatitudeField, Type: core.FieldText, AllowEmpty: true},
		{Name: LongitudeField, Type: core.FieldText, AllowEmpty: true},
		{Name: CreationField, Type: core.FieldText, AllowEmpty: true},
	}

	for p := 1; p <= core.MaxPlots; p++ {
		specs = append(specs,
			core.FieldSpec{Name: UnoccupiedField(p), Type: core.FieldText, AllowEmpty: true},
			core.FieldSpec{Name: UnoccupiedReasonField(p), Type: core.FieldText, AllowEmpty: true},
		)
		for slot := 1; slot <= s.SlotCount(); slot++ {
			specs = append(specs,
				core.FieldSpec{Name: SpeciesNameField(slot, p), Type: core.FieldText, AllowEmpty: true},
				core.FieldSpec{Name: SpeciesCountField(slot, p), Type: core.FieldText, AllowEmpty: true},
			)
		}
		specs = append(specs,
			core.FieldSpec{Name: PlotCommentField(p), Type: core.FieldText, AllowEmpty: true},
			core.FieldSpec{Name: PlotPhotosField(p), Type: core.FieldText, AllowEmpty: true},
		)
	}

	specs = append(specs,
		core.FieldSpec{Name: MoistureField, Type: core.FieldText, AllowEmpty: true},
		core.FieldSpec{Name: NutrientField, Type: core.FieldText, AllowEmpty: true},
		core.FieldSpec{Name: EcositeCommentField, Type: core.FieldText, AllowEmpty: true},
		core.FieldSpec{Name: GeneralCommentField, Type: core.FieldText, AllowEmpty: true},
		core.FieldSpec{Name: ClusterPhotoField, Type: core.FieldText, AllowEmpty: true},
		core.FieldSpec{Name: SurveyorsField, Type: core.FieldText, AllowEmpty: true},
		core.FieldSpec{Name: FMUField, Type: core.FieldText, AllowEmpty: true},
		core.FieldSpec{Name: DistrictField, Type: core.FieldText, AllowEmpty: true},
		core.FieldSpec{Name: TestDataField, Type: core.FieldText, AllowEmpty: true},
	)
	return specs
}

// buildSurveyRecord maps one validated row onto a SurveyRecord.
// Unparseable coordinates become 0; the caller reports them.
func buildSurveyRecord(s core.SilvSys, row []string, idx core.HeaderIndex) (core.SurveyRecord, error) {
	get := func(name string) string { return core.GetCell(row, idx, name) }

	rec := core.SurveyRecord{
		SilvSys:           s,
		ClusterNumber:     get(ClusterField),
		UserProjectID:     get(UserProjectField),
		OverrideProjectID: get(OverrideProjectField),
		CreationDateTime:  get(CreationField),

		Moisture:       get(MoistureField),
		Nutrient:       get(NutrientField),
		EcositeComment: get(EcositeCommentField),
		ClusterPhoto:   get(ClusterPhotoField),
		GeneralComment: get(GeneralCommentField),

		Surveyors:            get(SurveyorsField),
		ForestManagementUnit: get(FMUField),
		DistrictName:         get(DistrictField),
	}
	if rec.ClusterNumber == "" {
		return core.SurveyRecord{}, fmt.Errorf("%s is empty", ClusterField)
	}

	rec.Latitude, _ = core.ParseCoord(get(LatitudeField))
	rec.Longitude, _ = core.ParseCoord(get(LongitudeField))

	for p := 1; p <= core.MaxPlots; p++ {
		plot := &rec.Plots[p-1]
		plot.Unoccupied = IsYes(get(UnoccupiedField(p)))
		plot.UnoccupiedReason = get(UnoccupiedReasonField(p))
		plot.Comment = get(PlotCommentField(p))
		plot.Photos = get(PlotPhotosField(p))
		for slot := 1; slot <= s.SlotCount(); slot++ {
			plot.Slots[slot-1] = core.Slot{
				Name:  get(SpeciesNameField(slot, p)),
				Count: get(SpeciesCountField(slot, p)),
			}
		}
	}
	return rec, nil
}

// CellIssue is a malformed cell that the record builder read leniently.
type CellIssue struct {
	Field    string
	Value    string
	Fallback string
}

// CheckLenientCells reports the Yes/No and timestamp cells of row that did
// not parse. A Yes/No cell reads as "No", so a plot stays occupied, and a
// timestamp keeps its first 10 characters.
func CheckLenientCells(row []string, idx core.HeaderIndex) []CellIssue {
	var issues []CellIssue
	yesNo := func(field string) {
		raw := core.GetCell(row, idx, field)
		if raw == "" {
			return
		}
		if _, ok := core.ParseYesNo(raw); !ok {
			issues = append(issues, CellIssue{Field: field, Value: raw, Fallback: "No"})
		}
	}

	if raw := core.GetCell(row, idx, CreationField); raw != "" {
		if err := core.ValidateCell(raw, core.FieldSpec{Type: core.FieldDate}); err != nil {
			rec := core.SurveyRecord{CreationDateTime: raw}
			issues = append(issues, CellIssue{Field: CreationField, Value: raw, Fallback: rec.CreationDate()})
		}
	}
	for p := 1; p <= core.MaxPlots; p++ {
		yesNo(UnoccupiedField(p))
	}
	yesNo(TestDataField)
	return issues
}

// IsYes reports whether a Yes/No cell is "Yes".
func IsYes(s string) bool {
	return NormalizeYesNo(s) == "Yes"
}

// NormalizeYesNo maps the tablet's Yes/No spellings onto "Yes" and "No".
// Unrecognised values are returned as-is.
func NormalizeYesNo(s string) string {
	v, ok := core.ParseYesNo(s)
	switch {
	case !ok:
		return s
	case v:
		return "Yes"
	default:
		return "No"
	}
}
