package transaction

// Job types
const (
	JobProcess = "transaction.process"
)

// Webhook event names
const (
	EventCompleted = "transaction.completed"
	EventFailed    = "transaction.failed"
)

// Metadata keys validated at the orchestrator boundary.
const (
	MetaWalletID      = "wallet_id"
	MetaSourceWallet  = "source_wallet_id"
	MetaDestWallet    = "destination_wallet_id"
	MetaParentRef     = "parent_reference"
	MetaAuthorization = "authorization_url"
)

// Ledger reference suffixes for orchestrator-driven mutations; the ledger's
// paired rows carry the transaction reference plus one of these.
const (
	creditSuffix = "_CREDIT"
	debitSuffix  = "_DEBIT"
)
