package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrescriptionsFiltersNoneSentinel(t *testing.T) {
	record := PatientRecord{DrugsPrescribed: []string{"Meclizine 25mg", "None", "", "none"}}
	assert.Equal(t, []string{"Meclizine 25mg"}, record.Prescriptions())

	empty := PatientRecord{}
	assert.Nil(t, empty.Prescriptions())
}

func TestNewPatientRecordSetSortsByVisitDate(t *testing.T) {
	set := NewPatientRecordSet("Jane Doe", []PatientRecord{
		{DateOfVisit: "2023-03-02", Diagnosis: "Vertigo"},
		{DateOfVisit: "2022-11-15", Diagnosis: "Bronchitis"},
		{DateOfVisit: "2023-01-10", Diagnosis: "Migraine"},
	})

	require.Equal(t, 3, set.TotalRecords)
	assert.Equal(t, "2022-11-15", set.Records[0].DateOfVisit)
	assert.Equal(t, "2023-03-02", set.Records[2].DateOfVisit)

	newest := set.RecordsNewestFirst()
	assert.Equal(t, "2023-03-02", newest[0].DateOfVisit)
	// The original ordering is untouched.
	assert.Equal(t, "2022-11-15", set.Records[0].DateOfVisit)
}

func TestAgeRange(t *testing.T) {
	tests := []struct {
		name string
		ages []int
		want string
	}{
		{"spread", []int{42, 45, 43}, "42-45 years"},
		{"single age", []int{38, 38}, "38 years"},
		{"unknown ages skipped", []int{0, 51}, "51 years"},
		{"no ages", []int{0}, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]PatientRecord, len(tt.ages))
			for i, age := range tt.ages {
				records[i] = PatientRecord{DateOfVisit: fmt.Sprintf("2023-01-%02d", i+1), PatientAgeAtVisit: age}
			}
			set := NewPatientRecordSet("Jane Doe", records)
			assert.Equal(t, tt.want, set.AgeRange())
		})
	}
}

func TestInputSchemaShape(t *testing.T) {
	def := ToolDefinition{
		Name: "get_patient_summary",
		Parameters: map[string]ParameterSpec{
			"patient_name": {Type: "string", Required: true},
			"summary_type": {Type: "string", Required: true, Enum: []string{"comprehensive", "medication_focus"}},
			"tags":         {Type: "array"},
		},
	}

	schema := def.InputSchema()
	assert.Equal(t, "object", schema["type"])

	properties, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, properties, 3)

	summaryType := properties["summary_type"].(map[string]interface{})
	assert.Equal(t, []string{"comprehensive", "medication_focus"}, summaryType["enum"])

	tags := properties["tags"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"type": "string"}, tags["items"])

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"patient_name", "summary_type"}, required)
}

func TestErrorClassification(t *testing.T) {
	err := E(FailureNotFound, "no records found for patient %q", "Jane Doe")
	assert.Equal(t, FailureNotFound, KindOf(err))
	assert.Equal(t, `no records found for patient "Jane Doe"`, SafeMessage(err))

	wrapped := fmt.Errorf("handling turn: %w", err)
	assert.Equal(t, FailureNotFound, KindOf(wrapped))

	cause := errors.New("connection refused")
	unavailable := Wrap(FailureServiceUnavailable, cause, "patient record store unavailable")
	assert.ErrorIs(t, unavailable, cause)
	assert.Contains(t, unavailable.Error(), "SERVICE_UNAVAILABLE")

	plain := errors.New("nil pointer dereference")
	assert.Equal(t, FailureHandlerError, KindOf(plain))
	assert.Equal(t, "the tool failed unexpectedly", SafeMessage(plain))
	assert.Nil(t, DetailsOf(plain))

	ambiguous := &Error{Kind: FailureAmbiguous, Message: "multiple patients match", Details: []string{"Jane Doe", "Jane Doerr"}}
	assert.Equal(t, []string{"Jane Doe", "Jane Doerr"}, DetailsOf(ambiguous))
}

func TestToolCallResultOK(t *testing.T) {
	ok := ToolCallResult{ToolName: "get_patient_data", Summary: "Found 2 visit record(s) for Jane Doe."}
	assert.True(t, ok.OK())

	failed := ToolCallResult{ToolName: "get_patient_data", Failure: &ToolFailure{Kind: FailureTimeout, Message: "timed out"}}
	assert.False(t, failed.OK())
}
