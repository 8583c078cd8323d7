package domain

// Action is a ledger event that may move an invoice between states.
type Action string

const (
	// ActionSettle is a successful settlement: a reconciled payment or
	// an administrative mark-as-cash-paid.
	ActionSettle Action = "SETTLE"
	// ActionFail is a failed settlement attempt.
	ActionFail Action = "FAIL"
	// ActionRefund reverses a completed settlement.
	ActionRefund Action = "REFUND"
)

// transitions is the full state machine in one reviewable table.
// Policy: a successful payment against a FAILED invoice settles it
// directly (FAILED -> COMPLETED); no reset to PENDING is required.
// REFUNDED is terminal.
var transitions = map[InvoiceStatus]map[Action]InvoiceStatus{
	InvoiceStatusPending: {
		ActionSettle: InvoiceStatusCompleted,
		ActionFail:   InvoiceStatusFailed,
	},
	InvoiceStatusFailed: {
		ActionSettle: InvoiceStatusCompleted,
		ActionFail:   InvoiceStatusFailed,
	},
	InvoiceStatusCompleted: {
		ActionRefund: InvoiceStatusRefunded,
	},
	InvoiceStatusRefunded: {},
}

// NextStatus resolves the transition table for (from, action).
func NextStatus(from InvoiceStatus, action Action) (InvoiceStatus, bool) {
	to, ok := transitions[from][action]
	return to, ok
}

// Editable reports whether amount, due date, and payment method may still
// be changed administratively.
func (s InvoiceStatus) Editable() bool {
	return s == InvoiceStatusPending
}

// Terminal reports whether no action can move the invoice further.
func (s InvoiceStatus) Terminal() bool {
	return len(transitions[s]) == 0
}
