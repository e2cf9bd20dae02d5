package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/domain"
	"github.com/clinical-assistant-server/internal/store"
)

// PatientDataHandler serves get_patient_data: it retrieves every visit
// record for one patient identity from the document store.
type PatientDataHandler struct {
	reader store.PatientReader
	logger *logrus.Logger
}

// NewPatientDataHandler creates the patient data handler.
func NewPatientDataHandler(reader store.PatientReader, logger *logrus.Logger) *PatientDataHandler {
	return &PatientDataHandler{reader: reader, logger: logger}
}

// Definition implements Handler.
func (h *PatientDataHandler) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "get_patient_data",
		Description: "Retrieve all visit records for a patient by name, sorted by visit date.",
		Parameters: map[string]domain.ParameterSpec{
			"patient_name": {
				Type:        "string",
				Description: "Full name of the patient, e.g. 'Jane Doe'.",
				Required:    true,
			},
		},
	}
}

// Handle implements Handler.
func (h *PatientDataHandler) Handle(ctx context.Context, arguments map[string]interface{}) (interface{}, string, error) {
	patientName := strings.TrimSpace(StringArg(arguments, "patient_name"))

	recordSet, err := h.fetch(ctx, patientName)
	if err != nil {
		return nil, "", err
	}

	summary := fmt.Sprintf("Found %d visit record(s) for %s.", recordSet.TotalRecords, recordSet.PatientName)
	return recordSet, summary, nil
}

// fetch resolves a patient name to exactly one identity and its sorted
// record set. Zero matches is a reportable NOT_FOUND outcome; several
// distinct identities sharing the queried name is AMBIGUOUS, with the
// candidate identities attached so the model can ask the user to pick.
func (h *PatientDataHandler) fetch(ctx context.Context, patientName string) (*domain.PatientRecordSet, error) {
	records, err := h.reader.SearchPatient(ctx, patientName)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.E(domain.FailureNotFound, "no records found for patient %q", patientName)
	}

	groups := groupByIdentity(records)

	// The full-text match can pull in similarly named patients. An exact
	// case-insensitive name match wins over fuzzy neighbours.
	if exact, ok := groups[strings.ToLower(patientName)]; ok && len(groups) > 1 {
		h.logger.WithFields(logrus.Fields{
			"patient_query": patientName,
			"identities":    len(groups),
		}).Debug("Fuzzy matches narrowed to exact name")
		groups = map[string][]domain.PatientRecord{strings.ToLower(patientName): exact}
	}

	if len(groups) > 1 {
		identities := make([]string, 0, len(groups))
		for _, group := range groups {
			identities = append(identities, group[0].PatientName)
		}
		sort.Strings(identities)
		return nil, &domain.Error{
			Kind:    domain.FailureAmbiguous,
			Message: fmt.Sprintf("multiple patients match %q; ask which one is meant", patientName),
			Details: map[string]interface{}{"candidates": identities},
		}
	}

	for _, group := range groups {
		return domain.NewPatientRecordSet(group[0].PatientName, group), nil
	}
	return nil, domain.E(domain.FailureNotFound, "no records found for patient %q", patientName)
}

// FetchRecordSet exposes identity resolution to other handlers so summary
// and interaction tools share the same NOT_FOUND and AMBIGUOUS semantics.
func (h *PatientDataHandler) FetchRecordSet(ctx context.Context, patientName string) (*domain.PatientRecordSet, error) {
	return h.fetch(ctx, strings.TrimSpace(patientName))
}

func groupByIdentity(records []domain.PatientRecord) map[string][]domain.PatientRecord {
	groups := make(map[string][]domain.PatientRecord)
	for _, record := range records {
		key := strings.ToLower(strings.TrimSpace(record.PatientName))
		groups[key] = append(groups[key], record)
	}
	return groups
}
