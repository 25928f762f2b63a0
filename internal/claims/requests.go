package claims

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opensource-finance/harrier/internal/domain"
)

// SubmitRequest is a new claim with its initial documents.
type SubmitRequest struct {
	PolicyID    string            `json:"policyId" validate:"required,max=64"`
	ClaimantID  string            `json:"claimantId" validate:"required,max=254"`
	Amount      domain.Money      `json:"totalAmount" validate:"min=0"`
	Description string            `json:"description,omitempty" validate:"max=10000"`
	Documents   []DocumentRequest `json:"documents,omitempty" validate:"dive"`
}

// DocumentRequest attaches a stored document to a claim.
type DocumentRequest struct {
	DocumentType string `json:"documentType"`
	Locator      string `json:"locator" validate:"required"`
}

// StatusUpdate is a manual status change made during review.
type StatusUpdate struct {
	Status       string `json:"status" validate:"required"`
	SpecialistID string `json:"specialistId,omitempty" validate:"max=254"`
	Comments     string `json:"comments,omitempty" validate:"max=2000"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// check runs struct validation and reports failures as ErrInvalidInput.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(fields, "; "))
}
