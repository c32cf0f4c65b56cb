package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"subtrack/internal/auth"
	"subtrack/internal/httpserver/handlers"
	"subtrack/internal/models"
)

func NewRouter(db *gorm.DB, d handlers.Deps, webhookSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Post("/v1/auth/login", handlers.Login(d, db))
	r.Post("/v1/bot/webhook", handlers.BotWebhook(d, webhookSecret))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(db))

		protected.Get("/v1/me", handlers.Me(d))
		protected.Post("/v1/auth/logout", handlers.Logout(db))
		protected.Post("/v1/auth/password", handlers.ChangePassword(d))
		protected.Post("/v1/me/chat-token", handlers.ChatToken(d))

		protected.Get("/v1/departments", handlers.ListDepartments(d))

		protected.Get("/v1/requests", handlers.ListRequests(d))
		protected.Post("/v1/requests", handlers.CreateRequest(d))
		protected.Get("/v1/requests/{id}", handlers.GetRequest(d))
		protected.Patch("/v1/requests/{id}", handlers.UpdateRequest(d))
		protected.Delete("/v1/requests/{id}", handlers.DeleteRequest(d))
		protected.Post("/v1/requests/bulk-delete", handlers.BulkDeleteRequests(d))
		protected.Get("/v1/requests/{id}/comments", handlers.ListComments(d))
		protected.Post("/v1/requests/{id}/comments", handlers.AddComment(d))
		protected.Post("/v1/requests/{id}/attachment", handlers.UploadAttachment(d))
		protected.Get("/v1/requests/{id}/attachment", handlers.AttachmentURL(d))
		protected.Get("/v1/requests/{id}/credentials", handlers.ReadCredentials(d))
		protected.Post("/v1/requests/{id}/renewal", handlers.DecideRenewal(d))

		protected.Get("/v1/budget", handlers.BudgetOverview(d))
		protected.Get("/v1/analytics", handlers.AnalyticsSummary(d))
		protected.Get("/v1/export/budget.csv", handlers.ExportBudgetCSV(d))
		protected.Get("/v1/export/analytics.csv", handlers.ExportAnalyticsCSV(d))

		protected.Get("/v1/logs", handlers.MyLogs(d))

		protected.Group(func(staff chi.Router) {
			staff.Use(auth.RequireRole(models.RoleAdmin, models.RoleAccountant))
			staff.Patch("/v1/requests/{id}/status", handlers.UpdateRequestStatus(d))
			staff.Put("/v1/requests/{id}/credentials", handlers.AttachCredentials(d))
			staff.Put("/v1/requests/{id}/payment", handlers.SetPaymentInfo(d))
		})

		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole(models.RoleAdmin))
			admin.Get("/v1/admin/users", handlers.ListUsers(d))
			admin.Post("/v1/admin/users", handlers.CreateUser(d))
			admin.Patch("/v1/admin/users/{id}", handlers.UpdateUser(d))
			admin.Delete("/v1/admin/users/{id}", handlers.DeleteUser(d))
			admin.Post("/v1/departments", handlers.CreateDepartment(d))
			admin.Patch("/v1/departments/{id}", handlers.UpdateDepartment(d))
			admin.Put("/v1/departments/{id}/managers", handlers.SetDepartmentManagers(d))
			admin.Delete("/v1/departments/{id}", handlers.DeleteDepartment(d))
			admin.Get("/v1/admin/logs", handlers.AllLogs(d))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
