package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/ports"
)

// accountRow is the accounts table. Credentials are embedded as a dependent
// table so an account loads with its credential list, matching the original
// JSON document layout.
type accountRow struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string
	PasswordHash []byte
	Credentials  []credentialRow `gorm:"foreignKey:AccountID"`
	CreatedAt    time.Time
}

func (accountRow) TableName() string { return "accounts" }

// credentialRow is the credentials table. The primary key is the hex-encoded
// credential ID, which makes the global uniqueness constraint a database
// constraint rather than application bookkeeping.
type credentialRow struct {
	ID              string `gorm:"primaryKey"`
	AccountID       string `gorm:"index;not null"`
	PublicKey       []byte
	AttestationType string
	Transports      string // comma separated hints
	AAGUID          []byte
	SignCount       uint32
	BackupEligible  bool
	BackupState     bool
	CreatedAt       time.Time
	LastUsedAt      time.Time
}

func (credentialRow) TableName() string { return "credentials" }

// GormAccountStore is a gorm-backed AccountStore, durable across restarts.
// SQLite in its default journal mode serializes writers, and every mutation
// runs in a transaction, so per-account updates cannot interleave.
type GormAccountStore struct {
	db *gorm.DB
}

// NewGormAccountStore creates the store and migrates its tables.
func NewGormAccountStore(db *gorm.DB) (ports.AccountStore, error) {
	if err := db.AutoMigrate(&accountRow{}, &credentialRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate account tables: %w", err)
	}
	return &GormAccountStore{db: db}, nil
}

// FindAccount returns the account registered under an email.
func (s *GormAccountStore) FindAccount(ctx context.Context, email string) (*core.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Preload("Credentials").Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return rowToAccount(&row)
}

// FindAccountByID returns the account for an account ID.
func (s *GormAccountStore) FindAccountByID(ctx context.Context, id string) (*core.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Preload("Credentials").Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return rowToAccount(&row)
}

// FindAccountByCredential resolves a credential ID to its credential and
// owning account.
func (s *GormAccountStore) FindAccountByCredential(ctx context.Context, credentialID []byte) (*core.Account, *core.Credential, error) {
	var credRow credentialRow
	err := s.db.WithContext(ctx).Where("id = ?", hex.EncodeToString(credentialID)).First(&credRow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, core.ErrUnknownCredential
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load credential: %w", err)
	}

	account, err := s.FindAccountByID(ctx, credRow.AccountID)
	if err != nil {
		return nil, nil, err
	}

	cred, err := rowToCredential(&credRow)
	if err != nil {
		return nil, nil, err
	}
	return account, cred, nil
}

// CreateAccount persists a new account.
func (s *GormAccountStore) CreateAccount(ctx context.Context, account *core.Account) error {
	row := accountRow{
		ID:           account.ID,
		Email:        account.Email,
		Name:         account.Name,
		PasswordHash: account.PasswordHash,
		CreatedAt:    account.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&accountRow{}).Where("email = ?", account.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for existing account: %w", err)
		}
		if count > 0 {
			return core.ErrAccountExists
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
}

// AddCredential attaches a credential to an account, enforcing global
// uniqueness of the credential ID.
func (s *GormAccountStore) AddCredential(ctx context.Context, accountID string, cred core.Credential) error {
	row := credentialRow{
		ID:              hex.EncodeToString(cred.ID),
		AccountID:       accountID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		Transports:      strings.Join(cred.Transports, ","),
		AAGUID:          cred.AAGUID,
		SignCount:       cred.SignCount,
		BackupEligible:  cred.BackupEligible,
		BackupState:     cred.BackupState,
		CreatedAt:       cred.CreatedAt,
		LastUsedAt:      cred.LastUsedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var accounts int64
		if err := tx.Model(&accountRow{}).Where("id = ?", accountID).Count(&accounts).Error; err != nil {
			return fmt.Errorf("failed to check account: %w", err)
		}
		if accounts == 0 {
			return core.ErrAccountNotFound
		}

		var existing int64
		if err := tx.Model(&credentialRow{}).Where("id = ?", row.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check for existing credential: %w", err)
		}
		if existing > 0 {
			return core.ErrCredentialExists
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create credential: %w", err)
		}
		return nil
	})
}

// UpdateCredentialCounter records the signature counter after a successful
// assertion.
func (s *GormAccountStore) UpdateCredentialCounter(ctx context.Context, credentialID []byte, counter uint32) error {
	result := s.db.WithContext(ctx).Model(&credentialRow{}).
		Where("id = ?", hex.EncodeToString(credentialID)).
		Updates(map[string]interface{}{
			"sign_count":   counter,
			"last_used_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update credential counter: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return core.ErrUnknownCredential
	}
	return nil
}

// ListCredentials returns the credentials registered to an account.
func (s *GormAccountStore) ListCredentials(ctx context.Context, accountID string) ([]core.Credential, error) {
	var rows []credentialRow
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	creds := make([]core.Credential, 0, len(rows))
	for i := range rows {
		cred, err := rowToCredential(&rows[i])
		if err != nil {
			return nil, err
		}
		creds = append(creds, *cred)
	}
	return creds, nil
}

func rowToAccount(row *accountRow) (*core.Account, error) {
	account := &core.Account{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
	}
	for i := range row.Credentials {
		cred, err := rowToCredential(&row.Credentials[i])
		if err != nil {
			return nil, err
		}
		account.Credentials = append(account.Credentials, *cred)
	}
	return account, nil
}

func rowToCredential(row *credentialRow) (*core.Credential, error) {
	id, err := hex.DecodeString(row.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt credential id %q: %w", row.ID, err)
	}
	var transports []string
	if row.Transports != "" {
		transports = strings.Split(row.Transports, ",")
	}
	return &core.Credential{
		ID:              id,
		AccountID:       row.AccountID,
		PublicKey:       row.PublicKey,
		AttestationType: row.AttestationType,
		Transports:      transports,
		AAGUID:          row.AAGUID,
		SignCount:       row.SignCount,
		BackupEligible:  row.BackupEligible,
		BackupState:     row.BackupState,
		CreatedAt:       row.CreatedAt,
		LastUsedAt:      row.LastUsedAt,
	}, nil
}
