package model

// EntityStatement is a cached, signed entity statement
type EntityStatement struct {
	ID        uint   `gorm:"primarykey" json:"-" msgpack:"-"`
	EntityID  string `gorm:"size:255;not null" json:"entity_id" msgpack:"entity_id"`
	Issuer    string `gorm:"size:255;not null" json:"iss" msgpack:"iss"`
	Subject   string `gorm:"index:idx_statement_subject_exp;size:255;not null" json:"sub" msgpack:"sub"`
	Statement string `gorm:"type:text;not null" json:"statement" msgpack:"statement"`
	IssuedAt  int64  `gorm:"index" json:"iat" msgpack:"iat"`
	ExpiresAt int64  `gorm:"index:idx_statement_subject_exp" json:"exp" msgpack:"exp"`
}

// ValidAt reports whether the statement has not yet expired at the passed
// unix time
func (s EntityStatement) ValidAt(now int64) bool {
	return s.ExpiresAt > now
}

// StatementStore is an interface to cache EntityStatement rows
type StatementStore interface {
	// Put stores a newly issued statement; it supersedes older statements
	// for the same subject
	Put(statement *EntityStatement) error
	// Latest returns the most recently issued statement for subject that
	// expires strictly after now, or (nil, nil)
	Latest(subject string, now int64) (*EntityStatement, error)
	// Invalidate drops all cached statements for subject
	Invalidate(subject string) error
	// Purge deletes statements that expired at or before now and returns
	// their number
	Purge(now int64) (int64, error)
}
