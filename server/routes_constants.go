package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Pages
	RouteIndex = "/"
	RouteLogin = "/login"

	// Auth API
	RouteAPIAuthLogin   = "/api/auth/login"
	RouteAPIAuthRefresh = "/api/auth/refresh"
	RouteAPIAuthLogout  = "/api/auth/logout"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
