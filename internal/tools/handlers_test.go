package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-assistant-server/internal/domain"
	"github.com/clinical-assistant-server/internal/interactions"
)

// fakeReader serves canned patient records keyed by lowercase name
// substring, mimicking full-text match behaviour.
type fakeReader struct {
	records []domain.PatientRecord
	err     error
}

func (f *fakeReader) SearchPatient(ctx context.Context, patientName string) ([]domain.PatientRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func janeDoeRecords() []domain.PatientRecord {
	return []domain.PatientRecord{
		{
			PatientName:       "Jane Doe",
			DateOfVisit:       "2023-03-02",
			PatientComplaint:  "Dizziness",
			Diagnosis:         "Vertigo",
			DoctorNotes:       "Prescribed meclizine.",
			DrugsPrescribed:   []string{"Meclizine"},
			PatientAgeAtVisit: 42,
		},
		{
			PatientName:       "Jane Doe",
			DateOfVisit:       "2023-01-10",
			PatientComplaint:  "Chest congestion",
			Diagnosis:         "Bronchitis",
			DoctorNotes:       "Expectorant recommended.",
			DrugsPrescribed:   []string{"Mucinex"},
			PatientAgeAtVisit: 42,
		},
	}
}

func newPatientHandler(reader *fakeReader) *PatientDataHandler {
	return NewPatientDataHandler(reader, testLogger())
}

func newSummaryHandlerForTest(t *testing.T, reader *fakeReader) *SummaryHandler {
	t.Helper()
	checker, err := interactions.NewChecker()
	require.NoError(t, err)
	return NewSummaryHandler(newPatientHandler(reader), checker, testLogger())
}

func TestPatientDataHandlerReturnsSortedRecordSet(t *testing.T) {
	handler := newPatientHandler(&fakeReader{records: janeDoeRecords()})

	data, summary, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "Jane Doe",
	})
	require.NoError(t, err)
	assert.Contains(t, summary, "2 visit record(s)")

	recordSet, ok := data.(*domain.PatientRecordSet)
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", recordSet.PatientName)
	require.Len(t, recordSet.Records, 2)
	// Ascending by visit date.
	assert.Equal(t, "2023-01-10", recordSet.Records[0].DateOfVisit)
	assert.Equal(t, "2023-03-02", recordSet.Records[1].DateOfVisit)
}

func TestPatientDataHandlerNotFound(t *testing.T) {
	handler := newPatientHandler(&fakeReader{})

	_, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "Nonexistent Patient",
	})
	require.Error(t, err)
	assert.Equal(t, domain.FailureNotFound, domain.KindOf(err))
}

func TestPatientDataHandlerAmbiguousIdentities(t *testing.T) {
	records := append(janeDoeRecords(), domain.PatientRecord{
		PatientName:     "Jane Doerr",
		DateOfVisit:     "2023-05-01",
		Diagnosis:       "Migraine",
		DrugsPrescribed: []string{"None"},
	})
	handler := newPatientHandler(&fakeReader{records: records})

	// Neither identity matches the query exactly, so both are reported.
	_, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "Jane",
	})
	require.Error(t, err)
	assert.Equal(t, domain.FailureAmbiguous, domain.KindOf(err))

	details, ok := domain.DetailsOf(err).(map[string]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"Jane Doe", "Jane Doerr"}, details["candidates"])
}

func TestPatientDataHandlerExactNameWinsOverFuzzy(t *testing.T) {
	records := append(janeDoeRecords(), domain.PatientRecord{
		PatientName:     "Jane Doerr",
		DateOfVisit:     "2023-05-01",
		Diagnosis:       "Migraine",
		DrugsPrescribed: []string{"None"},
	})
	handler := newPatientHandler(&fakeReader{records: records})

	data, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "jane doe",
	})
	require.NoError(t, err)

	recordSet := data.(*domain.PatientRecordSet)
	assert.Equal(t, "Jane Doe", recordSet.PatientName)
	assert.Equal(t, 2, recordSet.TotalRecords)
}

func TestSummaryMedicationFocusMostRecentFirst(t *testing.T) {
	handler := newSummaryHandlerForTest(t, &fakeReader{records: janeDoeRecords()})

	data, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "Jane Doe",
		"summary_type": "medication_focus",
	})
	require.NoError(t, err)

	summary := data.(*domain.Summary)
	require.NotNil(t, summary.Medications)
	assert.Equal(t, []string{"Meclizine", "Mucinex"}, summary.Medications.AllMedications)

	require.Len(t, summary.Medications.Current, 1)
	assert.Equal(t, "Meclizine", summary.Medications.Current[0].Value)
	assert.Equal(t, "2023-03-02", summary.Medications.Current[0].VisitDate)
}

func TestSummaryDeduplicatesRepeatPrescriptions(t *testing.T) {
	records := janeDoeRecords()
	records = append(records, domain.PatientRecord{
		PatientName:     "Jane Doe",
		DateOfVisit:     "2023-06-15",
		Diagnosis:       "Vertigo",
		DrugsPrescribed: []string{"Meclizine 25mg"},
	})
	handler := newSummaryHandlerForTest(t, &fakeReader{records: records})

	data, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "Jane Doe",
		"summary_type": "medication_focus",
	})
	require.NoError(t, err)

	summary := data.(*domain.Summary)
	assert.Equal(t, []string{"Meclizine 25mg", "Mucinex"}, summary.Medications.AllMedications)
}

func TestSummaryNeverIntroducesUnknownFacts(t *testing.T) {
	records := janeDoeRecords()
	handler := newSummaryHandlerForTest(t, &fakeReader{records: records})

	sourceDrugs := map[string]bool{}
	sourceDates := map[string]bool{}
	sourceDiagnoses := map[string]bool{}
	for _, r := range records {
		sourceDates[r.DateOfVisit] = true
		sourceDiagnoses[r.Diagnosis] = true
		for _, d := range r.DrugsPrescribed {
			sourceDrugs[d] = true
		}
	}

	data, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "Jane Doe",
		"summary_type": "comprehensive",
	})
	require.NoError(t, err)
	summary := data.(*domain.Summary)

	for _, drug := range summary.Medications.AllMedications {
		assert.True(t, sourceDrugs[drug], "drug %q not in source records", drug)
	}
	for _, event := range summary.Medications.Timeline {
		assert.True(t, sourceDates[event.VisitDate], "date %q not in source records", event.VisitDate)
	}
	for _, fact := range summary.Overview.PrimaryConditions {
		assert.True(t, sourceDiagnoses[fact.Value], "diagnosis %q not in source records", fact.Value)
		assert.True(t, sourceDates[fact.VisitDate], "citation date %q not in source records", fact.VisitDate)
	}
	for _, event := range summary.Treatments.Timeline {
		assert.True(t, sourceDiagnoses[event.Diagnosis], "diagnosis %q not in source records", event.Diagnosis)
	}
}

func TestSummaryRiskAssessmentFlagsChronicAndInteractions(t *testing.T) {
	var records []domain.PatientRecord
	dates := []string{"2022-01-05", "2022-06-20", "2023-02-11", "2023-08-01", "2024-01-15", "2024-05-09"}
	for i, date := range dates {
		drugs := []string{"None"}
		if i == len(dates)-1 {
			drugs = []string{"Diazepam"}
		} else if i == len(dates)-2 {
			drugs = []string{"Meclizine"}
		}
		records = append(records, domain.PatientRecord{
			PatientName:       "John Smith",
			DateOfVisit:       date,
			Diagnosis:         "Vertigo",
			DrugsPrescribed:   drugs,
			PatientAgeAtVisit: 60 + i,
		})
	}
	handler := newSummaryHandlerForTest(t, &fakeReader{records: records})

	data, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "John Smith",
		"summary_type": "risk_assessment",
	})
	require.NoError(t, err)

	summary := data.(*domain.Summary)
	require.NotNil(t, summary.Risks)
	assert.True(t, summary.Risks.HighUtilization)
	require.Len(t, summary.Risks.ChronicConditions, 1)
	assert.Equal(t, "Vertigo", summary.Risks.ChronicConditions[0].Value)
	require.Len(t, summary.Risks.MedicationRisks, 1)
	assert.Equal(t, domain.SeverityWarning, summary.Risks.MedicationRisks[0].Severity)
}

func TestSummaryTreatmentHistoryNewestFirst(t *testing.T) {
	handler := newSummaryHandlerForTest(t, &fakeReader{records: janeDoeRecords()})

	data, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "Jane Doe",
		"summary_type": "treatment_history",
	})
	require.NoError(t, err)

	summary := data.(*domain.Summary)
	require.NotNil(t, summary.Treatments)
	require.Len(t, summary.Treatments.Timeline, 2)
	assert.Equal(t, "2023-03-02", summary.Treatments.Timeline[0].VisitDate)
	assert.Equal(t, "Vertigo", summary.Treatments.Timeline[0].Diagnosis)
}

func TestSummaryPropagatesNotFound(t *testing.T) {
	handler := newSummaryHandlerForTest(t, &fakeReader{})

	_, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name": "Nonexistent Patient",
		"summary_type": "comprehensive",
	})
	require.Error(t, err)
	assert.Equal(t, domain.FailureNotFound, domain.KindOf(err))
}

func TestInteractionHandlerFindsWarning(t *testing.T) {
	checker, err := interactions.NewChecker()
	require.NoError(t, err)
	handler := NewInteractionHandler(checker, testLogger())

	data, summary, err := handler.Handle(context.Background(), map[string]interface{}{
		"new_medications":      []interface{}{"Diazepam"},
		"existing_medications": []interface{}{"Meclizine"},
	})
	require.NoError(t, err)
	assert.Contains(t, summary, "1 potential interaction(s)")

	payload := data.(map[string]interface{})
	findings := payload["interactions"].([]domain.InteractionFinding)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SeverityWarning, findings[0].Severity)
}

func TestInteractionHandlerRequiresNewMedications(t *testing.T) {
	checker, err := interactions.NewChecker()
	require.NoError(t, err)
	handler := NewInteractionHandler(checker, testLogger())

	_, _, err = handler.Handle(context.Background(), map[string]interface{}{
		"new_medications": []interface{}{},
	})
	require.Error(t, err)
	assert.Equal(t, domain.FailureInvalidArguments, domain.KindOf(err))
}

func TestMedicationInfoLastVisit(t *testing.T) {
	handler := NewMedicationInfoHandler(newPatientHandler(&fakeReader{records: janeDoeRecords()}), testLogger())

	data, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name":          "Jane Doe",
		"medication_query_type": "last_visit",
	})
	require.NoError(t, err)

	payload := data.(map[string]interface{})
	events := payload["medications"].([]domain.MedicationEvent)
	require.Len(t, events, 1)
	assert.Equal(t, "2023-03-02", events[0].VisitDate)
	assert.Equal(t, []string{"Meclizine"}, events[0].Medications)
}

func TestMedicationInfoSpecificVisitRequiresDate(t *testing.T) {
	handler := NewMedicationInfoHandler(newPatientHandler(&fakeReader{records: janeDoeRecords()}), testLogger())

	_, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name":          "Jane Doe",
		"medication_query_type": "specific_visit",
	})
	require.Error(t, err)
	assert.Equal(t, domain.FailureInvalidArguments, domain.KindOf(err))
}

func TestMedicationInfoSpecificVisitUnknownDate(t *testing.T) {
	handler := NewMedicationInfoHandler(newPatientHandler(&fakeReader{records: janeDoeRecords()}), testLogger())

	_, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name":          "Jane Doe",
		"medication_query_type": "specific_visit",
		"visit_date":            "1999-01-01",
	})
	require.Error(t, err)
	assert.Equal(t, domain.FailureNotFound, domain.KindOf(err))
}

func TestMedicationInfoAllHistorySkipsVisitsWithoutPrescriptions(t *testing.T) {
	records := append(janeDoeRecords(), domain.PatientRecord{
		PatientName:     "Jane Doe",
		DateOfVisit:     "2023-04-20",
		Diagnosis:       "Follow-up",
		DrugsPrescribed: []string{"None"},
	})
	handler := NewMedicationInfoHandler(newPatientHandler(&fakeReader{records: records}), testLogger())

	data, _, err := handler.Handle(context.Background(), map[string]interface{}{
		"patient_name":          "Jane Doe",
		"medication_query_type": "all_history",
	})
	require.NoError(t, err)

	payload := data.(map[string]interface{})
	events := payload["medications"].([]domain.MedicationEvent)
	require.Len(t, events, 2)
	assert.Equal(t, "2023-03-02", events[0].VisitDate)
	assert.Equal(t, "2023-01-10", events[1].VisitDate)
}
