package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/go-oidfed/registrar/storage/model"
)

// StatementStorage implements model.StatementStore in the database. Rows
// are append-only; a newer row for the same subject supersedes older ones.
type StatementStorage struct {
	db *gorm.DB
}

// Put stores a newly issued statement
func (s *StatementStorage) Put(statement *model.EntityStatement) error {
	statement.ID = 0
	return errors.Wrap(s.db.Create(statement).Error, "failed to store entity statement")
}

// Latest returns the most recently issued statement for subject that is
// still valid at now
func (s *StatementStorage) Latest(subject string, now int64) (*model.EntityStatement, error) {
	var stmt model.EntityStatement
	err := s.db.Where("subject = ? AND expires_at > ?", subject, now).
		Order("issued_at DESC").Order("id DESC").
		First(&stmt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load entity statement")
	}
	return &stmt, nil
}

// Invalidate removes all cached statements for subject
func (s *StatementStorage) Invalidate(subject string) error {
	return errors.Wrap(
		s.db.Where("subject = ?", subject).Delete(&model.EntityStatement{}).Error,
		"failed to invalidate entity statements",
	)
}

// Purge deletes all statements that are expired at now
func (s *StatementStorage) Purge(now int64) (int64, error) {
	res := s.db.Where("expires_at <= ?", now).Delete(&model.EntityStatement{})
	return res.RowsAffected, errors.Wrap(res.Error, "failed to purge entity statements")
}
