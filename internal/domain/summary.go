package domain

// SummaryType selects how a patient record set is projected.
type SummaryType string

const (
	SummaryComprehensive    SummaryType = "comprehensive"
	SummaryMedicationFocus  SummaryType = "medication_focus"
	SummaryRecentVisits     SummaryType = "recent_visits"
	SummaryRiskAssessment   SummaryType = "risk_assessment"
	SummaryTreatmentHistory SummaryType = "treatment_history"
)

// SummaryTypes lists the valid summary_type values in schema order.
func SummaryTypes() []string {
	return []string{
		string(SummaryComprehensive),
		string(SummaryMedicationFocus),
		string(SummaryRecentVisits),
		string(SummaryRiskAssessment),
		string(SummaryTreatmentHistory),
	}
}

// CitedFact is a single derived fact together with the visit date it was
// taken from. Summaries carry citations so callers can render provenance;
// they never collapse to bare prose.
type CitedFact struct {
	Value     string `json:"value"`
	VisitDate string `json:"visit_date"`
}

// MedicationEvent is one dated prescription entry in a medication timeline.
type MedicationEvent struct {
	VisitDate   string   `json:"visit_date"`
	Medications []string `json:"medications"`
	Diagnosis   string   `json:"diagnosis,omitempty"`
}

// TreatmentEvent is one dated entry in a treatment timeline.
type TreatmentEvent struct {
	VisitDate   string   `json:"visit_date"`
	Diagnosis   string   `json:"diagnosis,omitempty"`
	Medications []string `json:"medications,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// PatientOverview summarizes the whole history at a glance.
type PatientOverview struct {
	TotalVisits       int         `json:"total_visits"`
	AgeRange          string      `json:"age_range"`
	PrimaryConditions []CitedFact `json:"primary_conditions"`
}

// MedicationSummary is the medication_focus projection. AllMedications is
// the ordered union of prescribed drugs across visits, most recent first,
// deduplicated preserving order of recency.
type MedicationSummary struct {
	AllMedications []string          `json:"all_medications"`
	Current        []CitedFact       `json:"current_medications"`
	Timeline       []MedicationEvent `json:"timeline"`
}

// RecentVisitsSummary is the recent_visits projection.
type RecentVisitsSummary struct {
	Visits             []PatientRecord `json:"visits"`
	VisitFrequency     string          `json:"visit_frequency"`
	TrendingConditions []string        `json:"trending_conditions"`
}

// RiskAssessment is the risk_assessment projection.
type RiskAssessment struct {
	ChronicConditions []CitedFact          `json:"chronic_conditions"`
	HighUtilization   bool                 `json:"high_utilization"`
	MedicationRisks   []InteractionFinding `json:"medication_risks"`
}

// TreatmentHistory is the treatment_history projection.
type TreatmentHistory struct {
	Timeline []TreatmentEvent `json:"timeline"`
}

// Summary is the structured result of a summarization request. Only the
// sections relevant to the requested type are populated; comprehensive
// fills them all. Narrative is a short pre-rendered natural-language
// rendition derived exclusively from the populated sections.
type Summary struct {
	PatientName  string               `json:"patient_name"`
	SummaryType  SummaryType          `json:"summary_type"`
	Overview     *PatientOverview     `json:"overview,omitempty"`
	Medications  *MedicationSummary   `json:"medications,omitempty"`
	RecentVisits *RecentVisitsSummary `json:"recent_visits,omitempty"`
	Risks        *RiskAssessment      `json:"risks,omitempty"`
	Treatments   *TreatmentHistory    `json:"treatments,omitempty"`
	Narrative    string               `json:"narrative"`
}
