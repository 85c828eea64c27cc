package handler

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printops/mps-console/internal/handler/middleware"
	"github.com/printops/mps-console/internal/service"
)

func SetupRoutes(
	app *fiber.App,
	authHandler *AuthHandler,
	policyHandler *PolicyHandler,
	resourceTypeHandler *ResourceTypeHandler,
	navigationHandler *NavigationHandler,
	healthHandler *HealthHandler,
	navService *service.NavigationService,
	authMiddleware fiber.Handler,
) {
	// Health checks and metrics (public)
	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Role-based landing redirect
	app.Get("/", authHandler.Home)

	api := app.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.Logout)

	// Auth routes (protected)
	auth.Get("/profile", authMiddleware, authHandler.Profile)
	auth.Patch("/change-password", authMiddleware, authHandler.ChangePassword)
	auth.Get("/customer-managers", authMiddleware, middleware.RequireAdmin(), authHandler.CustomerManagers)

	// Aliases kept for the console UI
	me := api.Group("/me", authMiddleware)
	me.Get("/", authHandler.Profile)
	me.Post("/change-password", authHandler.ChangePassword)
	api.Get("/customer-managers", authMiddleware, middleware.RequireAdmin(), authHandler.CustomerManagers)

	// UI grants (protected, advisory)
	api.Get("/navigation/grants", authMiddleware, navigationHandler.Grants)

	// Policy catalog (admins; mutations re-checked against the active
	// navigation config)
	policies := api.Group("/policies", authMiddleware, middleware.RequireAdmin())
	policies.Post("/", middleware.RequireAction(navService, "policies", "create"), policyHandler.CreatePolicy)
	policies.Get("/", policyHandler.ListPolicies)
	policies.Get("/subject-fields", policyHandler.SubjectFields)
	policies.Post("/analyze", policyHandler.AnalyzeDraft)
	policies.Get("/analyze/result", policyHandler.DraftAnalysis)
	policies.Post("/evaluate", policyHandler.Evaluate)
	policies.Get("/:id", policyHandler.GetPolicy)
	policies.Put("/:id", middleware.RequireAction(navService, "policies", "update"), policyHandler.UpdatePolicy)
	policies.Delete("/:id", middleware.RequireAction(navService, "policies", "delete"), policyHandler.DeletePolicy)

	// Resource type catalog (system admin only)
	resourceTypes := api.Group("/resource-types", authMiddleware, middleware.RequireSystemAdmin())
	resourceTypes.Post("/", resourceTypeHandler.CreateResourceType)
	resourceTypes.Get("/", resourceTypeHandler.ListResourceTypes)
	resourceTypes.Get("/:key", resourceTypeHandler.GetResourceType)
	resourceTypes.Put("/:key", resourceTypeHandler.UpdateResourceType)
	resourceTypes.Delete("/:key", resourceTypeHandler.DeleteResourceType)

	// Navigation config catalog (admins)
	navConfigs := api.Group("/navigation-configs", authMiddleware, middleware.RequireAdmin())
	navConfigs.Post("/", middleware.RequireAction(navService, "navigation", "create"), navigationHandler.CreateConfig)
	navConfigs.Get("/", navigationHandler.ListConfigs)
	navConfigs.Get("/:id", navigationHandler.GetConfig)
	navConfigs.Put("/:id", middleware.RequireAction(navService, "navigation", "update"), navigationHandler.UpdateConfig)
	navConfigs.Post("/:id/activate", middleware.RequireAction(navService, "navigation", "activate"), navigationHandler.ActivateConfig)
	navConfigs.Delete("/:id", middleware.RequireAction(navService, "navigation", "delete"), navigationHandler.DeleteConfig)
}
