package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/domain"
	"github.com/clinical-assistant-server/internal/interactions"
)

// Thresholds for the derived clinical views. A diagnosis repeating more
// than chronicThreshold times counts as chronic; more than
// highUtilizationVisits visits flags high utilization.
const (
	chronicThreshold      = 2
	recurringThreshold    = 1
	highUtilizationVisits = 5
	topConditionsLimit    = 3
	recentVisitsLimit     = 3
)

// SummaryHandler serves get_patient_summary: it projects a patient's
// record set into one of the fixed summary views. Every derived fact
// carries the visit date it came from; nothing in the output exists
// outside the source records.
type SummaryHandler struct {
	patients *PatientDataHandler
	checker  *interactions.Checker
	logger   *logrus.Logger
}

// NewSummaryHandler creates the summarization handler.
func NewSummaryHandler(patients *PatientDataHandler, checker *interactions.Checker, logger *logrus.Logger) *SummaryHandler {
	return &SummaryHandler{patients: patients, checker: checker, logger: logger}
}

// Definition implements Handler.
func (h *SummaryHandler) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "get_patient_summary",
		Description: "Build a structured summary of a patient's history. Summary types: comprehensive, medication_focus, recent_visits, risk_assessment, treatment_history.",
		Parameters: map[string]domain.ParameterSpec{
			"patient_name": {
				Type:        "string",
				Description: "Full name of the patient.",
				Required:    true,
			},
			"summary_type": {
				Type:        "string",
				Description: "Which projection of the history to build.",
				Required:    true,
				Enum:        domain.SummaryTypes(),
			},
		},
	}
}

// Handle implements Handler.
func (h *SummaryHandler) Handle(ctx context.Context, arguments map[string]interface{}) (interface{}, string, error) {
	patientName := StringArg(arguments, "patient_name")
	summaryType := domain.SummaryType(StringArg(arguments, "summary_type"))

	recordSet, err := h.patients.FetchRecordSet(ctx, patientName)
	if err != nil {
		return nil, "", err
	}

	summary := h.Build(recordSet, summaryType)
	return summary, summary.Narrative, nil
}

// Build projects a record set according to the summary type. The record
// set is already sorted by visit date ascending.
func (h *SummaryHandler) Build(recordSet *domain.PatientRecordSet, summaryType domain.SummaryType) *domain.Summary {
	summary := &domain.Summary{
		PatientName: recordSet.PatientName,
		SummaryType: summaryType,
	}

	switch summaryType {
	case domain.SummaryMedicationFocus:
		summary.Medications = buildMedicationSummary(recordSet)
	case domain.SummaryRecentVisits:
		summary.RecentVisits = buildRecentVisits(recordSet)
	case domain.SummaryRiskAssessment:
		summary.Risks = h.buildRiskAssessment(recordSet)
	case domain.SummaryTreatmentHistory:
		summary.Treatments = buildTreatmentHistory(recordSet)
	default:
		summary.SummaryType = domain.SummaryComprehensive
		summary.Overview = buildOverview(recordSet)
		summary.Medications = buildMedicationSummary(recordSet)
		summary.RecentVisits = buildRecentVisits(recordSet)
		summary.Risks = h.buildRiskAssessment(recordSet)
		summary.Treatments = buildTreatmentHistory(recordSet)
	}

	summary.Narrative = renderNarrative(summary)
	return summary
}

func buildOverview(recordSet *domain.PatientRecordSet) *domain.PatientOverview {
	return &domain.PatientOverview{
		TotalVisits:       recordSet.TotalRecords,
		AgeRange:          recordSet.AgeRange(),
		PrimaryConditions: primaryConditions(recordSet),
	}
}

// primaryConditions returns the most frequent diagnoses, each cited with
// the most recent visit it appeared on.
func primaryConditions(recordSet *domain.PatientRecordSet) []domain.CitedFact {
	counts := make(map[string]int)
	lastSeen := make(map[string]string)
	var order []string
	for _, record := range recordSet.Records {
		diagnosis := strings.TrimSpace(record.Diagnosis)
		if diagnosis == "" {
			continue
		}
		if counts[diagnosis] == 0 {
			order = append(order, diagnosis)
		}
		counts[diagnosis]++
		lastSeen[diagnosis] = record.DateOfVisit
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topConditionsLimit {
		order = order[:topConditionsLimit]
	}

	facts := make([]domain.CitedFact, 0, len(order))
	for _, diagnosis := range order {
		facts = append(facts, domain.CitedFact{Value: diagnosis, VisitDate: lastSeen[diagnosis]})
	}
	return facts
}

// buildMedicationSummary collects every prescribed drug most recent
// first, deduplicated preserving order of recency, with the newest
// visit's prescriptions reported as current.
func buildMedicationSummary(recordSet *domain.PatientRecordSet) *domain.MedicationSummary {
	newest := recordSet.RecordsNewestFirst()

	var all []string
	seen := make(map[string]bool)
	timeline := make([]domain.MedicationEvent, 0, len(newest))
	for _, record := range newest {
		drugs := record.Prescriptions()
		if len(drugs) > 0 {
			timeline = append(timeline, domain.MedicationEvent{
				VisitDate:   record.DateOfVisit,
				Medications: drugs,
				Diagnosis:   record.Diagnosis,
			})
		}
		for _, drug := range drugs {
			key := interactions.Normalize(drug)
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, drug)
		}
	}

	var current []domain.CitedFact
	if len(newest) > 0 {
		for _, drug := range newest[0].Prescriptions() {
			current = append(current, domain.CitedFact{Value: drug, VisitDate: newest[0].DateOfVisit})
		}
	}

	return &domain.MedicationSummary{
		AllMedications: all,
		Current:        current,
		Timeline:       timeline,
	}
}

func buildRecentVisits(recordSet *domain.PatientRecordSet) *domain.RecentVisitsSummary {
	newest := recordSet.RecordsNewestFirst()
	visits := newest
	if len(visits) > recentVisitsLimit {
		visits = visits[:recentVisitsLimit]
	}

	return &domain.RecentVisitsSummary{
		Visits:             visits,
		VisitFrequency:     visitFrequency(recordSet),
		TrendingConditions: trendingConditions(newest),
	}
}

// visitFrequency reports visits per year over the recorded span. Visit
// dates are ISO-8601 so the year is the first four characters.
func visitFrequency(recordSet *domain.PatientRecordSet) string {
	if recordSet.TotalRecords == 0 {
		return "no recorded visits"
	}
	first := recordSet.Records[0].DateOfVisit
	last := recordSet.Records[len(recordSet.Records)-1].DateOfVisit
	if len(first) < 4 || len(last) < 4 {
		return fmt.Sprintf("%d visit(s) recorded", recordSet.TotalRecords)
	}
	var firstYear, lastYear int
	fmt.Sscanf(first[:4], "%d", &firstYear)
	fmt.Sscanf(last[:4], "%d", &lastYear)
	years := lastYear - firstYear + 1
	if years < 1 {
		years = 1
	}
	perYear := float64(recordSet.TotalRecords) / float64(years)
	return fmt.Sprintf("%.1f visits per year", perYear)
}

// trendingConditions reports diagnoses appearing markedly more often in
// the recent half of the history than in the older half.
func trendingConditions(newestFirst []domain.PatientRecord) []string {
	if len(newestFirst) < 2 {
		return nil
	}
	half := len(newestFirst) / 2
	recent := diagnosisCounts(newestFirst[:half])
	older := diagnosisCounts(newestFirst[half:])

	var trending []string
	for diagnosis, recentCount := range recent {
		olderCount := older[diagnosis]
		if olderCount == 0 {
			if recentCount > recurringThreshold {
				trending = append(trending, diagnosis)
			}
			continue
		}
		if float64(recentCount) >= 1.5*float64(olderCount) {
			trending = append(trending, diagnosis)
		}
	}
	sort.Strings(trending)
	return trending
}

func diagnosisCounts(records []domain.PatientRecord) map[string]int {
	counts := make(map[string]int)
	for _, record := range records {
		diagnosis := strings.TrimSpace(record.Diagnosis)
		if diagnosis != "" {
			counts[diagnosis]++
		}
	}
	return counts
}

// buildRiskAssessment flags chronic conditions, utilization and adverse
// combinations among the medications on record.
func (h *SummaryHandler) buildRiskAssessment(recordSet *domain.PatientRecordSet) *domain.RiskAssessment {
	counts := make(map[string]int)
	lastSeen := make(map[string]string)
	for _, record := range recordSet.Records {
		diagnosis := strings.TrimSpace(record.Diagnosis)
		if diagnosis == "" {
			continue
		}
		counts[diagnosis]++
		lastSeen[diagnosis] = record.DateOfVisit
	}

	var chronic []domain.CitedFact
	for diagnosis, count := range counts {
		if count > chronicThreshold {
			chronic = append(chronic, domain.CitedFact{Value: diagnosis, VisitDate: lastSeen[diagnosis]})
		}
	}
	sort.Slice(chronic, func(i, j int) bool { return chronic[i].Value < chronic[j].Value })

	medications := buildMedicationSummary(recordSet).AllMedications
	risks := h.checker.Check(medications, nil)

	return &domain.RiskAssessment{
		ChronicConditions: chronic,
		HighUtilization:   recordSet.TotalRecords > highUtilizationVisits,
		MedicationRisks:   risks,
	}
}

func buildTreatmentHistory(recordSet *domain.PatientRecordSet) *domain.TreatmentHistory {
	newest := recordSet.RecordsNewestFirst()
	timeline := make([]domain.TreatmentEvent, 0, len(newest))
	for _, record := range newest {
		timeline = append(timeline, domain.TreatmentEvent{
			VisitDate:   record.DateOfVisit,
			Diagnosis:   record.Diagnosis,
			Medications: record.Prescriptions(),
			Notes:       record.DoctorNotes,
		})
	}
	return &domain.TreatmentHistory{Timeline: timeline}
}

// renderNarrative turns the populated sections into a short dated prose
// rendition. It only restates facts already present in the sections.
func renderNarrative(summary *domain.Summary) string {
	var parts []string

	if summary.Overview != nil {
		part := fmt.Sprintf("%s has %d recorded visit(s), age %s.",
			summary.PatientName, summary.Overview.TotalVisits, summary.Overview.AgeRange)
		if len(summary.Overview.PrimaryConditions) > 0 {
			part += " Primary conditions: " + joinCited(summary.Overview.PrimaryConditions) + "."
		}
		parts = append(parts, part)
	}

	if summary.Medications != nil {
		if len(summary.Medications.AllMedications) == 0 {
			parts = append(parts, fmt.Sprintf("No medications on record for %s.", summary.PatientName))
		} else {
			part := "Medications on record (most recent first): " + strings.Join(summary.Medications.AllMedications, ", ") + "."
			if len(summary.Medications.Current) > 0 {
				part += " Most recent prescriptions: " + joinCited(summary.Medications.Current) + "."
			}
			parts = append(parts, part)
		}
	}

	if summary.RecentVisits != nil {
		part := fmt.Sprintf("Visit frequency: %s.", summary.RecentVisits.VisitFrequency)
		if len(summary.RecentVisits.TrendingConditions) > 0 {
			part += " Increasingly frequent: " + strings.Join(summary.RecentVisits.TrendingConditions, ", ") + "."
		}
		parts = append(parts, part)
	}

	if summary.Risks != nil {
		var riskParts []string
		if len(summary.Risks.ChronicConditions) > 0 {
			riskParts = append(riskParts, "chronic conditions: "+joinCited(summary.Risks.ChronicConditions))
		}
		if summary.Risks.HighUtilization {
			riskParts = append(riskParts, "high visit utilization")
		}
		for _, risk := range summary.Risks.MedicationRisks {
			riskParts = append(riskParts, fmt.Sprintf("%s interaction between %s and %s (%s)",
				risk.Severity, risk.DrugA, risk.DrugB, risk.Rationale))
		}
		if len(riskParts) == 0 {
			parts = append(parts, "No notable risk factors identified from the records.")
		} else {
			parts = append(parts, "Risk factors: "+strings.Join(riskParts, "; ")+".")
		}
	}

	if summary.Treatments != nil && len(summary.Treatments.Timeline) > 0 {
		event := summary.Treatments.Timeline[0]
		parts = append(parts, fmt.Sprintf("Most recent treatment on %s: %s.", event.VisitDate, event.Diagnosis))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("No summarizable records for %s.", summary.PatientName)
	}
	return strings.Join(parts, " ")
}

func joinCited(facts []domain.CitedFact) string {
	rendered := make([]string, len(facts))
	for i, fact := range facts {
		rendered[i] = fmt.Sprintf("%s (visit %s)", fact.Value, fact.VisitDate)
	}
	return strings.Join(rendered, ", ")
}
