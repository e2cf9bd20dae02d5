package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clinical-assistant-server/internal/domain"
	"github.com/clinical-assistant-server/internal/interactions"
)

// InteractionHandler serves check_medication_interactions over the static
// rule table.
type InteractionHandler struct {
	checker *interactions.Checker
	logger  *logrus.Logger
}

// NewInteractionHandler creates the interaction check handler.
func NewInteractionHandler(checker *interactions.Checker, logger *logrus.Logger) *InteractionHandler {
	return &InteractionHandler{checker: checker, logger: logger}
}

// Definition implements Handler.
func (h *InteractionHandler) Definition() domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        "check_medication_interactions",
		Description: "Check proposed medications against a patient's existing medications for known adverse interactions.",
		Parameters: map[string]domain.ParameterSpec{
			"new_medications": {
				Type:        "array",
				Items:       "string",
				Description: "Medications being considered or newly prescribed.",
				Required:    true,
			},
			"existing_medications": {
				Type:        "array",
				Items:       "string",
				Description: "Medications the patient is already taking. May be empty.",
				Required:    false,
			},
		},
	}
}

// Handle implements Handler.
func (h *InteractionHandler) Handle(ctx context.Context, arguments map[string]interface{}) (interface{}, string, error) {
	newMeds := StringSliceArg(arguments, "new_medications")
	existingMeds := StringSliceArg(arguments, "existing_medications")

	if len(newMeds) == 0 {
		return nil, "", domain.E(domain.FailureInvalidArguments, "new_medications must contain at least one medication")
	}

	findings := h.checker.Check(newMeds, existingMeds)

	payload := map[string]interface{}{
		"interactions":     findings,
		"checked_new":      newMeds,
		"checked_existing": existingMeds,
	}

	summary := "No known interactions found."
	if len(findings) > 0 {
		summary = fmt.Sprintf("Found %d potential interaction(s); highest severity %s.",
			len(findings), findings[0].Severity)
	}
	return payload, summary, nil
}
