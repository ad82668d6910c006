package prescription

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sehaty-app/backend-sehaty/internal/common"
	"github.com/sehaty-app/backend-sehaty/internal/events"
)

// SubmitInput is the payload for a new prescription request.
type SubmitInput struct {
	Category      string `json:"category" validate:"required,oneof=pharmacy lab radiology"`
	PatientName   string `json:"patientName" validate:"required,min=2,max=120"`
	Phone         string `json:"phone" validate:"required,min=8,max=20"`
	Address       string `json:"address" validate:"required,min=5,max=300"`
	Items         string `json:"items" validate:"max=2000"`
	AttachmentURL string `json:"attachmentUrl" validate:"omitempty,url,max=500"`
}

// Service handles prescription submission and fulfilment tracking.
type Service struct {
	Store    Store
	Validate *validator.Validate
	Events   *events.Bus
}

// Submit records a new prescription request and announces it.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, in SubmitInput) (Prescription, error) {
	if err := s.Validate.Struct(in); err != nil {
		return Prescription{}, common.NewAppError("VALIDATION_ERROR", "invalid prescription payload", http.StatusBadRequest, err)
	}
	if in.Items == "" && in.AttachmentURL == "" {
		return Prescription{}, common.NewAppError("VALIDATION_ERROR", "items or attachment is required", http.StatusBadRequest, nil)
	}

	p, err := s.Store.Insert(ctx, Prescription{
		ID:            uuid.New(),
		UserID:        userID,
		Category:      in.Category,
		PatientName:   in.PatientName,
		Phone:         in.Phone,
		Address:       in.Address,
		Items:         in.Items,
		AttachmentURL: in.AttachmentURL,
		Status:        StatusReceived,
	})
	if err != nil {
		return Prescription{}, err
	}

	_, _ = s.Events.Emit(ctx, events.TopicPrescriptionReceived, p.ID.String(), map[string]any{
		"prescriptionId": p.ID.String(),
		"userId":         p.UserID.String(),
		"category":       p.Category,
	})
	return p, nil
}

// ListMine returns the caller's prescriptions, newest first.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Prescription, error) {
	return s.Store.ListByUser(ctx, userID, limit, offset)
}

// ListAll returns prescriptions for the admin dashboard, optionally
// filtered by status.
func (s *Service) ListAll(ctx context.Context, status string, limit, offset int) ([]Prescription, error) {
	return s.Store.ListAll(ctx, status, limit, offset)
}

var statusTransitions = map[string][]string{
	StatusReceived:   {StatusProcessing, StatusRejected},
	StatusProcessing: {StatusFulfilled, StatusRejected},
}

// SetStatus advances a prescription through its fulfilment lifecycle.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (Prescription, error) {
	current, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return Prescription{}, err
	}

	allowed := false
	for _, next := range statusTransitions[current.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return Prescription{}, common.NewAppError("INVALID_STATE",
			"cannot move prescription from "+current.Status+" to "+status, http.StatusConflict, nil)
	}
	return s.Store.UpdateStatus(ctx, id, status)
}
