package handlers

import (
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"subtrack/internal/notify"
	"subtrack/internal/repository"
	"subtrack/internal/storage"
	"subtrack/internal/workflow"
)

var validate = validator.New()

// Deps bundles the collaborators handler constructors close over.
type Deps struct {
	Users       *repository.UserRepository
	Departments *repository.DepartmentRepository
	Requests    *repository.RequestRepository
	Audit       *repository.AuditRepository
	Workflow    *workflow.Service
	Pending     *notify.PendingStore
	Bot         notify.Sender
	Attachments *storage.AttachmentStore
	Lg          *zap.SugaredLogger
}
