package domain

// Op names a ledger operation recorded in the journal.
type Op string

// Journal operation constants.
const (
	OpConfigure      Op = "configure"
	OpCreate         Op = "create"
	OpIssue          Op = "issue"
	OpTransfer       Op = "transfer"
	OpSetStatus      Op = "set_status"
	OpSetName        Op = "set_name"
	OpSetDescription Op = "set_description"
	OpSetField1      Op = "set_field1"
	OpSetField2      Op = "set_field2"
	OpSetField3      Op = "set_field3"
)

// CreatePayload is the token creation payload carried in a create entry's
// Value field, JSON-encoded so replay can reconstruct the full registration.
type CreatePayload struct {
	Issuer      Identity `json:"issuer"`
	Status      uint32   `json:"status"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Field1      string   `json:"field1"`
	Field2      string   `json:"field2"`
	Field3      string   `json:"field3"`
}

// JournalEntry is the audit record of one applied operation. Entries are
// append-only and written only after the operation has committed; a failed
// operation leaves no entry. The journal is not ledger-critical state:
// replaying it against an empty ledger reproduces the exact registry and
// balance state.
type JournalEntry struct {
	EntryID   string   // PRIMARY KEY, deterministic SHA-256 hash
	Seq       uint64   // strictly increasing sequence number
	Op        Op       // operation kind
	TokenID   TokenID  // affected token (0 for configure)
	From      Identity // debited account, or issuer for create/issue/setters
	To        Identity // credited account (empty when not applicable)
	Units     int64    // raw quantity units (0 when not applicable)
	Payer     Identity // resource payer for any record created by the operation
	Memo      string   // caller memo for issue/transfer
	Value     string   // new value for configure and the metadata/status setters
	AppliedAt int64    // Unix timestamp in milliseconds
}
