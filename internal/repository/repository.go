package repository

import (
	"errors"

	"github.com/Fi44er/community_payments/utils"
	"gorm.io/gorm"
)

var (
	ErrDuplicateReference = errors.New("transaction with this reference already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrFailureNotFound    = errors.New("payment failure not found")
)

type Repository struct {
	db     *gorm.DB
	logger *utils.Logger
}

func NewRepository(db *gorm.DB, logger *utils.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
