package specification

import "gorm.io/gorm"

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// ByAction filters turn logs by decision action (execute, clarify, discard).
type ByAction struct {
	Action string
}

func (s ByAction) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("action = ?", s.Action)
}
