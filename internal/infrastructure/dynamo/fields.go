package dynamo

// Attribute and index names shared by the store files.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID     = "user_id"
	fieldEmail      = "email"
	fieldRoleID     = "role_id"
	fieldName       = "name"
	fieldTokenHash  = "token_hash"
	fieldCodeID     = "code_id"
	fieldType       = "type"
	fieldDeletedAt  = "deleted_at"
	fieldLastUsedAt = "last_used_at"
	fieldPurgeAt    = "purge_at"

	indexRoleName      = "name-index"
	indexCodesByUserID = "user_id-code_id-index"
)
