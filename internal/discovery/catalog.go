package discovery

// PathCatalog is probed in catalog mode. Some patterns appear twice; they
// are probed once but still count toward the catalog size.
var PathCatalog = []string{
	// RESTful resources
	"/users", "/posts", "/products", "/orders", "/items", "/customers",
	"/employees", "/articles", "/comments", "/reviews", "/ratings",
	"/categories", "/tags", "/files", "/images", "/documents",
	"/projects", "/tasks", "/events", "/schedules", "/bookings",
	"/payments", "/invoices", "/transactions", "/accounts", "/profiles",

	// Versioned
	"/api/users", "/api/v1/users", "/api/v2/users", "/v1/users", "/v2/users",
	"/api/posts", "/api/v1/posts", "/api/v2/posts", "/v1/posts",
	"/api/products", "/api/v1/products", "/api/v2/products",

	// Namespaced
	"/data/users", "/data/posts", "/resources/users", "/resources/posts",
	"/services/users", "/services/posts", "/entities/users", "/entities/posts",

	// Generic
	"/entities", "/objects", "/records", "/items", "/data", "/resources",

	// Auth and accounts
	"/auth", "/login", "/logout", "/register", "/signup", "/signin",
	"/password", "/reset", "/verify", "/confirm", "/activate",

	// Files and media
	"/files", "/uploads", "/downloads", "/media", "/images", "/videos",
	"/documents", "/attachments", "/assets", "/static",

	// Search
	"/search", "/find", "/query", "/discover", "/explore", "/browse",

	// Analytics
	"/analytics", "/metrics", "/stats", "/reports", "/dashboard",
	"/insights", "/data", "/statistics",
}

// SpecDocumentPaths are tried in order; the first parseable or JSON one wins.
var SpecDocumentPaths = []string{
	"/openapi.json",
	"/swagger.json",
	"/api-docs",
	"/swagger/v1/swagger.json",
	"/v1/swagger.json",
	"/api-docs/v2/swagger.json",
	"/api/v1/swagger.json",
	"/docs/swagger.json",
	"/api/docs/swagger.json",
}

// DocumentationPaths are scraped for path-like strings when they return 200.
var DocumentationPaths = []string{
	"/docs",
	"/documentation",
	"/api-docs",
	"/api/documentation",
	"/help",
	"/api/help",
	"/reference",
	"/api/reference",
}
