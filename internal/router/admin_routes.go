package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-service/internal/middleware"
	"github.com/iliyamo/library-service/internal/model"
)

// RegisterAdmin registers the ADMIN-scoped endpoints under /api/admin.
func RegisterAdmin(api *echo.Group, h Handlers, jwtSecret string) {
	g := api.Group("/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Catalog ----
	g.GET("/books", h.Catalog.AdminListBooks)
	g.POST("/books", h.Catalog.CreateBook)
	g.GET("/books/:id", h.Catalog.AdminGetBook)
	g.PUT("/books/:id", h.Catalog.UpdateBook)
	g.DELETE("/books/:id", h.Catalog.DeactivateBook)
	g.GET("/books/:id/copies", h.Catalog.ListCopies)
	g.POST("/books/:id/copies", h.Catalog.AddCopies)
	g.PATCH("/copies/:id", h.Catalog.SetCopyStatus)

	g.GET("/authors", h.Catalog.ListAuthors)
	g.POST("/authors", h.Catalog.CreateAuthor)
	g.GET("/authors/:id", h.Catalog.GetAuthor)
	g.PUT("/authors/:id", h.Catalog.UpdateAuthor)
	g.DELETE("/authors/:id", h.Catalog.DeleteAuthor)

	g.POST("/categories", h.Catalog.CreateCategory)

	// ---- Users ----
	g.GET("/users", h.Users.List)
	g.GET("/users/:id", h.Users.Get)
	g.PUT("/users/:id", h.Users.Update)
	g.DELETE("/users/:id", h.Users.Delete)
	g.PATCH("/users/:id/status", h.Users.SetStatus)
	g.POST("/users/:id/reset-password", h.Users.ResetPassword)
	g.PUT("/users/:id/password", h.Users.SetPassword)

	// ---- Circulation ----
	g.GET("/loans", h.Loans.List)
	g.GET("/loans/overdue", h.Loans.Overdue)
	g.POST("/loans", h.Loans.Create)
	g.GET("/loans/:id", h.Loans.Get)
	g.PUT("/loans/:id", h.Loans.Update)
	g.DELETE("/loans/:id", h.Loans.Delete)

	g.GET("/reservations", h.Reservations.List)
	g.DELETE("/reservations/:id", h.Reservations.Cancel)

	g.GET("/penalties", h.Penalties.List)
	g.POST("/penalties", h.Penalties.Create)
	g.POST("/penalties/:id/paid", h.Penalties.MarkPaid)

	// ---- Reports ----
	g.GET("/stats/summary", h.Stats.Summary)
	g.GET("/stats/loans-per-day", h.Stats.LoansPerDay)
}
