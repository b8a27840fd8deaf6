package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyCapability = "OPERATOR_CAPABILITY"
	KeyOperator   = "operator"
)
