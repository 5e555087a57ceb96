package dto

// GenerateTimetableRequest instructs the generator to run for a semester.
type GenerateTimetableRequest struct {
	SemesterID          string `json:"semesterId" validate:"required"`
	Name                string `json:"name" validate:"omitempty,max=200"`
	NumSolutions        int    `json:"numSolutions" validate:"omitempty,min=1,max=10"`
	MaxGenerations      int    `json:"maxGenerations" validate:"omitempty,min=1"`
	PopulationSize      int    `json:"populationSize" validate:"omitempty,min=1"`
	BaselineTimetableID string `json:"baselineTimetableId" validate:"omitempty,uuid"`
}

// GenerateTimetableResponse returns the generated options, best first.
type GenerateTimetableResponse struct {
	Timetables []TimetableSummary `json:"timetables"`
}

// TimetableSummary is the listed view of a timetable.
type TimetableSummary struct {
	ID             string   `json:"id"`
	SemesterID     string   `json:"semesterId"`
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	QualityScore   *float64 `json:"qualityScore,omitempty"`
	ConflictCount  int      `json:"conflictCount"`
	IsPublished    bool     `json:"isPublished"`
	Algorithm      string   `json:"algorithm"`
	GenerationTime *float64 `json:"generationTimeSeconds,omitempty"`
}
