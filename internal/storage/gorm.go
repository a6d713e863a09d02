package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sqpplus/internal/domain"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ServerInstance struct {
	ID               string `gorm:"primaryKey"`
	Name             string `gorm:"size:64;not null;uniqueIndex"`
	BasePath         string `gorm:"size:256;not null"`
	InstancePath     string `gorm:"size:320;not null"`
	GamePort         int    `gorm:"not null"`
	QueryPort        int    `gorm:"not null"`
	MaxPlayers       int    `gorm:"not null"`
	SessionName      string `gorm:"size:64;not null"`
	RconSecret       string `gorm:"size:128"`
	RconSecretHashed bool
	CreatedAt        time.Time `gorm:"index"`
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(path string) (*GormStore, error) {
	newLogger := gormlogger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		gormlogger.Config{
			IgnoreRecordNotFoundError: true,
			LogLevel:                  gormlogger.Error,
		},
	)

	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: newLogger, TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&ServerInstance{}); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertInstance writes a new record in its own transaction. A name that is
// already cataloged yields domain.ErrNameConflict; any other failure rolls
// the transaction back and yields domain.ErrCatalog.
func (s *GormStore) InsertInstance(inst *domain.ServerInstance) error {
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}

	row := &ServerInstance{
		ID:               inst.ID,
		Name:             inst.Name,
		BasePath:         inst.BasePath,
		InstancePath:     inst.InstancePath,
		GamePort:         inst.GamePort,
		QueryPort:        inst.QueryPort,
		MaxPlayers:       inst.MaxPlayers,
		SessionName:      inst.SessionName,
		RconSecret:       inst.RconSecret,
		RconSecretHashed: inst.RconSecretHashed,
		CreatedAt:        inst.CreatedAt,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %q", domain.ErrNameConflict, inst.Name)
	}
	return fmt.Errorf("%w: %v", domain.ErrCatalog, err)
}

func (s *GormStore) GetInstanceByName(name string) (*domain.ServerInstance, error) {
	var row ServerInstance
	result := s.db.First(&row, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying instance: %w", result.Error)
	}

	inst := toDomain(row)
	return &inst, nil
}

// ListInstances returns every record, newest first.
func (s *GormStore) ListInstances() ([]domain.ServerInstance, error) {
	var rows []ServerInstance
	if err := s.db.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}

	instances := make([]domain.ServerInstance, 0, len(rows))
	for _, row := range rows {
		instances = append(instances, toDomain(row))
	}
	return instances, nil
}

func (s *GormStore) DeleteInstance(name string) error {
	result := s.db.Delete(&ServerInstance{}, "name = ?", name)
	if result.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrCatalog, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, name)
	}
	return nil
}

func toDomain(row ServerInstance) domain.ServerInstance {
	return domain.ServerInstance{
		ID:               row.ID,
		Name:             row.Name,
		BasePath:         row.BasePath,
		InstancePath:     row.InstancePath,
		GamePort:         row.GamePort,
		QueryPort:        row.QueryPort,
		MaxPlayers:       row.MaxPlayers,
		SessionName:      row.SessionName,
		RconSecret:       row.RconSecret,
		RconSecretHashed: row.RconSecretHashed,
		CreatedAt:        row.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
