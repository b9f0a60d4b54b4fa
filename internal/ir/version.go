package ir

// Version constants for the call log schema and ledger.
const (
	// IRVersion is the call log value schema version.
	IRVersion = "1"

	// LedgerVersion is the dvgov ledger version recorded with every call.
	LedgerVersion = "0.1.0"
)
