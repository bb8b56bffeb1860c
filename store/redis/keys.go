package redis

// Key prefixes for primary entity storage.
const (
	prefixRule       = "herald:rule:"
	prefixAccount    = "herald:acct:"
	prefixFollower   = "herald:flw:" // + owner + ":" + actor (hash)
	prefixClaim      = "herald:claim:"
	prefixTriggerLog = "herald:tlog:"
	prefixFailure    = "herald:fail:"
	prefixDedup      = "herald:dedup:"
)

// Key prefixes for unique indexes.
const (
	uniqueAccountOwner    = "herald:u:acct:owner:"
	uniqueAccountExternal = "herald:u:acct:ext:"
)

// Key prefixes for sorted set indexes.
const (
	zRuleOwner     = "herald:z:rule:owner:" // + owner user ID
	zClaimAll      = "herald:z:claim:all"
	zTriggerAll    = "herald:z:tlog:all"
	zTriggerRule   = "herald:z:tlog:rule:"   // + automation ID
	zTriggerRecent = "herald:z:tlog:recent:" // + automation ID + ":" + actor ID
	zFailureAll    = "herald:z:fail:all"
	zFailureOwner  = "herald:z:fail:owner:" // + owner user ID
)

// Key prefixes for set indexes.
const (
	sRuleActive = "herald:s:rule:active:" // + owner user ID
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// followerKey returns the hash key for an owner's follower record.
func followerKey(ownerUserID, actorID string) string {
	return prefixFollower + ownerUserID + ":" + actorID
}

// recentTriggerKey returns the sorted set of an actor's firings of a rule.
func recentTriggerKey(automationID, actorID string) string {
	return zTriggerRecent + automationID + ":" + actorID
}
