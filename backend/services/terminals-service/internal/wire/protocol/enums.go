package protocol

// Frame types sent by the server.
const (
	FrameResult          = "result"
	FrameError           = "error"
	FrameComputersUpdate = "computers-update"
)

// Commands mutate terminal state.
const (
	CommandStartSession        = "start-session"
	CommandStartOpenSession    = "start-open-session"
	CommandStopSession         = "stop-session"
	CommandAddTime             = "add-time"
	CommandUpdateSession       = "update-session"
	CommandAddExtra            = "add-extra"
	CommandTogglePaid          = "toggle-paid"
	CommandToggleMaintenance   = "toggle-maintenance"
	CommandMoveSession         = "move-session"
	CommandRenameCustomer      = "rename-customer"
	CommandInitializeComputers = "initialize-computers"
	CommandAssignZone          = "assign-zone"
	CommandSaveZone            = "save-zone"
	CommandDeleteZone          = "delete-zone"
)

// Queries read state without changing it.
const (
	QueryZones        = "get-zones"
	QueryDailyRevenue = "get-daily-revenue"
	QueryHistory      = "get-history"
	QueryReceipt      = "get-receipt"
	QueryComputers    = "get-computers"
)

// Session modes accepted by update-session.
const (
	ModeFixed = "fixed"
	ModeOpen  = "open"
)
