package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/domain"
)

// MedicationInfoHandler serves get_medication_info: targeted medication
// queries over a patient's visit history.
type MedicationInfoHandler struct {
	patients *PatientDataHandler
	logger   *logrus.Logger
}

// NewMedicationInfoHandler creates the medication query handler.
func NewMedicationInfoHandler(patients *PatientDataHandler, logger *logrus.Logger) *MedicationInfoHandler {
	return &MedicationInfoHandler{patients: patients, logger: logger}
}

// Definition implements Handler.
func (h *MedicationInfoHandler) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "get_medication_info",
		Description: "Query a patient's prescribed medications: from the last visit, currently active, across the whole history, or for a specific visit date.",
		Parameters: map[string]domain.ParameterSpec{
			"patient_name": {
				Type:        "string",
				Description: "Full name of the patient.",
				Required:    true,
			},
			"medication_query_type": {
				Type:        "string",
				Description: "Which slice of the medication history to return.",
				Required:    true,
				Enum:        []string{"last_visit", "current", "all_history", "specific_visit"},
			},
			"visit_date": {
				Type:        "string",
				Description: "Visit date (YYYY-MM-DD), required when medication_query_type is specific_visit.",
				Required:    false,
			},
		},
	}
}

// Handle implements Handler.
func (h *MedicationInfoHandler) Handle(ctx context.Context, arguments map[string]interface{}) (interface{}, string, error) {
	patientName := StringArg(arguments, "patient_name")
	queryType := StringArg(arguments, "medication_query_type")
	visitDate := StringArg(arguments, "visit_date")

	if queryType == "specific_visit" && visitDate == "" {
		return nil, "", domain.E(domain.FailureInvalidArguments, "visit_date is required for specific_visit queries")
	}

	recordSet, err := h.patients.FetchRecordSet(ctx, patientName)
	if err != nil {
		return nil, "", err
	}

	events := medicationEvents(recordSet, queryType, visitDate)
	if queryType == "specific_visit" && len(events) == 0 {
		return nil, "", domain.E(domain.FailureNotFound, "no visit on %s for patient %q", visitDate, recordSet.PatientName)
	}

	payload := map[string]interface{}{
		"patient_name": recordSet.PatientName,
		"query_type":   queryType,
		"medications":  events,
	}

	total := 0
	for _, event := range events {
		total += len(event.Medications)
	}
	summary := fmt.Sprintf("%d medication(s) across %d visit(s) for %s.", total, len(events), recordSet.PatientName)
	return payload, summary, nil
}

func medicationEvents(recordSet *domain.PatientRecordSet, queryType, visitDate string) []domain.MedicationEvent {
	newest := recordSet.RecordsNewestFirst()
	var events []domain.MedicationEvent

	appendRecord := func(record domain.PatientRecord) {
		events = append(events, domain.MedicationEvent{
			VisitDate:   record.DateOfVisit,
			Medications: record.Prescriptions(),
			Diagnosis:   record.Diagnosis,
		})
	}

	switch queryType {
	case "last_visit", "current":
		// Current medications are taken to be the latest visit's
		// prescriptions; the records carry no stop dates.
		if len(newest) > 0 {
			appendRecord(newest[0])
		}
	case "specific_visit":
		for _, record := range newest {
			if record.DateOfVisit == visitDate {
				appendRecord(record)
			}
		}
	default: // all_history
		for _, record := range newest {
			if len(record.Prescriptions()) > 0 {
				appendRecord(record)
			}
		}
	}
	return events
}
