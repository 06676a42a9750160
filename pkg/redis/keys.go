package redis

import "strings"

const (
	keyNamespace      = "ts"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
	tableScope        = "table"
)

// key joins the non-empty trimmed parts under the ts namespace.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IdempotencyKey namespaces a stored request or event claim.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key(idempotencyPrefix, scope, id)
}

// TableLockKey guards settlement of one table within a branch.
func (c *Client) TableLockKey(branchCode, tableID string) string {
	return key(lockPrefix, tableScope, branchCode, tableID)
}
