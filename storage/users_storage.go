package storage

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/go-oidfed/registrar/storage/model"
)

// UsersStorage implements model.UsersStore; passwords are stored as argon2id
// hashes
type UsersStorage struct {
	db     *gorm.DB
	params Argon2idParams
}

// UsersStorage returns a UsersStorage
func (s *Storage) UsersStorage() *UsersStorage {
	return &UsersStorage{
		db:     s.db,
		params: s.userParams,
	}
}

func userNotFound(username string) error {
	return model.NotFoundErrorFmt("user '%s' not found", username)
}

func (s *UsersStorage) find(username string) (*model.User, error) {
	var u model.User
	if err := s.db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, userNotFound(username)
		}
		return nil, errors.Wrap(err, "failed to load user")
	}
	return &u, nil
}

func redacted(u *model.User) *model.User {
	u.PasswordHash = ""
	return u
}

// Count returns the number of admin users
func (s *UsersStorage) Count() (count int64, err error) {
	err = errors.Wrap(s.db.Model(&model.User{}).Count(&count).Error, "failed to count users")
	return
}

// List returns all users without password hashes
func (s *UsersStorage) List() ([]model.User, error) {
	var users []model.User
	if err := s.db.Order("id").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	for i := range users {
		redacted(&users[i])
	}
	return users, nil
}

// Get returns a user by username
func (s *UsersStorage) Get(username string) (*model.User, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	return redacted(u), nil
}

// Create creates a new user
func (s *UsersStorage) Create(username, password, displayName string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	hash, err := newPasswordHash(password, s.params)
	if err != nil {
		return nil, err
	}
	u := model.User{
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
	}
	if err = s.db.Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, model.AlreadyExistsErrorFmt("user '%s' already exists", username)
		}
		return nil, errors.Wrap(err, "failed to create user")
	}
	return redacted(&u), nil
}

// Update changes the display name, password, or disabled flag of a user
func (s *UsersStorage) Update(
	username string, displayName, newPassword *string, disabled *bool,
) (*model.User, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	if disabled != nil {
		u.Disabled = *disabled
	}
	if newPassword != nil {
		if *newPassword == "" {
			return nil, errors.New("password must not be empty")
		}
		if u.PasswordHash, err = newPasswordHash(*newPassword, s.params); err != nil {
			return nil, err
		}
	}
	if err = s.db.Save(u).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update user")
	}
	return redacted(u), nil
}

// Delete removes a user
func (s *UsersStorage) Delete(username string) error {
	res := s.db.Where("username = ?", username).Delete(&model.User{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete user")
	}
	if res.RowsAffected == 0 {
		return userNotFound(username)
	}
	return nil
}

// Authenticate checks username and password. Hashes created with other
// parameters than the configured ones are rehashed on success.
func (s *UsersStorage) Authenticate(username, password string) (*model.User, error) {
	u, err := s.find(username)
	if err != nil {
		return nil, err
	}
	if u.Disabled {
		return nil, errors.New("user disabled")
	}
	stored, err := parsePHC(u.PasswordHash)
	if err != nil || !stored.matches(password) {
		return nil, errors.New("invalid credentials")
	}
	if !stored.params.sameCost(s.params.withDefaults()) {
		if hash, err := newPasswordHash(password, s.params); err == nil {
			if err = s.db.Model(u).Update("password_hash", hash).Error; err != nil {
				log.WithError(err).WithField("user", username).Warn("could not upgrade password hash")
			}
		}
	}
	return redacted(u), nil
}
