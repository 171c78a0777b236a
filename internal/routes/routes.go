package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/zapdesk/zapdesk-backend/internal/config"
	"github.com/zapdesk/zapdesk-backend/internal/handler"
	"github.com/zapdesk/zapdesk-backend/internal/middleware"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	catalogHandler *handler.CatalogHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	usageHandler *handler.UsageHandler,
	invoiceHandler *handler.InvoiceHandler,
	creditHandler *handler.CreditHandler,
	entitlementHandler *handler.EntitlementHandler,
	cfg *config.Config,
) {
	api := router.Group("/api/v1", middleware.TenantMiddleware())

	// Public catalog (no tenant context required)
	catalog := api.Group("/catalog")
	catalog.GET("/plans", catalogHandler.ListPlans)
	catalog.GET("/modules", catalogHandler.ListModules)

	// Asynchronous settlement callback from the payment processor;
	// carries its own tenant reference in the body
	api.POST("/payments/callback", invoiceHandler.Settle)

	// Tenant-scoped billing surface
	tenant := api.Group("", middleware.RequireTenant())

	subscription := tenant.Group("/subscription")
	subscription.POST("", subscriptionHandler.Create)
	subscription.GET("", subscriptionHandler.Get)
	subscription.POST("/change-plan", subscriptionHandler.ChangePlan)
	subscription.POST("/cancel", subscriptionHandler.Cancel)
	subscription.POST("/reactivate", subscriptionHandler.Reactivate)
	subscription.GET("/history", subscriptionHandler.ListChanges)
	subscription.POST("/modules", subscriptionHandler.PurchaseModule)
	subscription.DELETE("/modules/:slug", subscriptionHandler.RemoveModule)

	usage := tenant.Group("/usage")
	usage.POST("", usageHandler.Record)
	usage.GET("", usageHandler.List)
	usage.GET("/:resource", usageHandler.Get)

	invoices := tenant.Group("/invoices")
	invoices.GET("", invoiceHandler.List)
	invoices.GET("/:id", invoiceHandler.Get)
	invoices.POST("/:id/coupon", invoiceHandler.ApplyCoupon)
	invoices.POST("/:id/pay", invoiceHandler.Pay)

	credits := tenant.Group("/credits")
	credits.GET("/balance", creditHandler.Balance)
	credits.GET("/history", creditHandler.History)

	entitlements := tenant.Group("/entitlements")
	entitlements.GET("", entitlementHandler.Resolve)
	entitlements.GET("/status", entitlementHandler.Status)
	entitlements.GET("/modules/:slug", entitlementHandler.CheckModule)
	entitlements.GET("/limits/:resource", entitlementHandler.CheckLimit)

	// Operator endpoints, guarded by the static admin key
	admin := api.Group("/admin", middleware.AdminKeyAuth(cfg.Server.AdminAPIKey))
	admin.POST("/tenants/:tenant_id/credits", creditHandler.Adjust)
	admin.PUT("/tenants/:tenant_id/overrides", entitlementHandler.SetOverride)
	admin.DELETE("/tenants/:tenant_id/overrides/:kind/:key", entitlementHandler.RemoveOverride)
}
