// Package store persists ledgers and user accounts in Postgres via gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"invledger/models"
	"invledger/pkg/reconcile"
)

var (
	// ErrNotFound is returned when a record does not exist or is not visible
	// to the caller.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("user already exists")
)

// Store wraps a gorm handle.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the schema and seeds the master roles. Tables are migrated
// one at a time so a permission problem on one does not block the others;
// such failures are logged and the first one is returned.
func (s *Store) Migrate() error {
	var first error
	note := func(table string, err error) {
		if err == nil {
			return
		}
		slog.Warn("migration warning", "table", table, "err", err)
		if first == nil {
			first = fmt.Errorf("migrate %s: %w", table, err)
		}
	}

	// Roles first so the users FK can be applied.
	note("roles", s.db.AutoMigrate(&models.Role{}))
	note("roles", s.seedRoles())
	note("users", s.db.AutoMigrate(&models.User{}))
	note("ledgers", s.db.AutoMigrate(&models.Ledger{}))
	note("ledger_lines", s.db.AutoMigrate(&models.LedgerLine{}))
	note("ledger_images", s.db.AutoMigrate(&models.LedgerImage{}))
	return first
}

func (s *Store) seedRoles() error {
	for _, r := range models.DefaultRoles() {
		if err := s.db.Where("name = ?", r.Name).FirstOrCreate(&r).Error; err != nil {
			return err
		}
	}
	return nil
}

// NewLedger converts a reconciliation result into a ledger record.
func NewLedger(res *reconcile.Result, device string, userID *uint) *models.Ledger {
	if device == "" {
		device = "unknown"
	}
	l := &models.Ledger{UserID: userID, Device: device, Total: res.Total}
	for _, line := range res.Lines {
		l.Lines = append(l.Lines, models.LedgerLine{
			Seq:       line.Seq,
			ImageName: line.Image,
			Cell:      line.Cell,
			ItemName:  line.Item,
			Quantity:  line.Quantity,
			UnitValue: line.UnitValue,
			Total:     line.Total,
		})
	}
	for i, img := range res.Images {
		l.Images = append(l.Images, models.LedgerImage{
			Position:     i + 1,
			Name:         img.Name,
			Lines:        img.Lines,
			Subtotal:     img.Subtotal,
			Failed:       img.Err != "",
			FailedReason: truncate(img.Err, 255),
		})
	}
	return l
}

// SaveLedger inserts a ledger together with its lines and images.
func (s *Store) SaveLedger(ctx context.Context, l *models.Ledger) error {
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// GetLedger loads one ledger with lines in sequence order. A non-nil owner
// restricts the lookup to that user's ledgers.
func (s *Store) GetLedger(ctx context.Context, id uint, owner *uint) (*models.Ledger, error) {
	q := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
	if owner != nil {
		q = q.Where("user_id = ?", *owner)
	}
	var l models.Ledger
	if err := q.First(&l, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ledger %d: %w", id, err)
	}
	return &l, nil
}

// ListLedgers returns ledger headers, newest first. A non-nil owner limits
// the list to that user.
func (s *Store) ListLedgers(ctx context.Context, owner *uint, limit int) ([]models.Ledger, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if owner != nil {
		q = q.Where("user_id = ?", *owner)
	}
	var out []models.Ledger
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	return out, nil
}

// CreateUser inserts an account with the given role name.
func (s *Store) CreateUser(ctx context.Context, username string, hashed []byte, role string) (*models.User, error) {
	db := s.db.WithContext(ctx)
	var existing int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if existing > 0 {
		return nil, ErrUserExists
	}

	r := models.Role{Name: role}
	if err := db.Where("name = ?", role).FirstOrCreate(&r).Error; err != nil {
		return nil, fmt.Errorf("ensure role %s: %w", role, err)
	}
	u := &models.User{Username: username, HashedPassword: hashed, RoleID: &r.ID, Role: r}
	if err := db.Omit("Role").Create(u).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// FindUser looks an account up by username with its role loaded.
func (s *Store) FindUser(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Preload("Role").Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// isUniqueConstraintError catches the race between the existence check and
// the insert.
func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
