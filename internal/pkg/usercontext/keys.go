package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	KeyAccountID     = "account_id"
	KeyEmail         = "email"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
)
