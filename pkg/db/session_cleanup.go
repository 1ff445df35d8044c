package db

import (
	"time"
)

const SessionCleanupInterval = time.Hour

// CleanupExpiredSessions removes practice runs and battle snapshots whose
// ExpiresAt is not after now.
func CleanupExpiredSessions(now time.Time) (int64, error) {
	if DB == nil {
		return 0, nil
	}
	var deleted int64

	res := DB.Where("expires_at <= ?", now).Delete(&PracticeSession{})
	if res.Error != nil {
		return deleted, Wrap("db.CleanupExpiredSessions", res.Error)
	}
	deleted += res.RowsAffected

	res = DB.Where("expires_at <= ?", now).Delete(&BattleState{})
	if res.Error != nil {
		return deleted, Wrap("db.CleanupExpiredSessions", res.Error)
	}
	deleted += res.RowsAffected

	return deleted, nil
}
