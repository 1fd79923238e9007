package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldEntity    = "entity"
	FieldState     = "state"
	FieldCategory  = "category"
	FieldOperation = "operation"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldSuccess   = "success"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentSync    = "sync"
	ComponentStorage = "storage"
	ComponentBudget  = "budget"
	ComponentAMQP    = "amqp"
	ComponentLedger  = "ledger"
	ComponentRemote  = "remote"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpSync      = "sync"
	OpRecompute = "recompute"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)
