package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hakim/scandash/internal/models"
)

// ScanRow is the relational form of a stored scan. Findings are kept as a
// JSON document since they are only ever read back whole.
type ScanRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	URL       string    `gorm:"index;not null"`
	Status    string    `gorm:"size:16;not null"`
	Progress  int
	Error     string
	Findings  string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index"`
	CreatedAt time.Time
}

// TableName overrides the gorm default.
func (ScanRow) TableName() string { return "scans" }

// SQLStore persists scan history through gorm.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore connects to postgres with dsn and migrates the schema.
func NewSQLStore(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewSQLStoreFromDB(db)
}

// NewSQLStoreFromDB wraps an existing gorm handle and migrates the schema.
func NewSQLStoreFromDB(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&ScanRow{}); err != nil {
		return nil, fmt.Errorf("migrating scans table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// SaveScan inserts a scan. Existing rows are never updated.
func (s *SQLStore) SaveScan(scan *models.Scan) error {
	row, err := toRow(scan)
	if err != nil {
		return err
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("inserting scan %s: %w", scan.ID, err)
	}
	return nil
}

// LoadScans returns every stored scan, newest first.
func (s *SQLStore) LoadScans() ([]models.Scan, error) {
	var rows []ScanRow
	if err := s.db.Order("timestamp desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	return fromRows(rows)
}

func fromRows(rows []ScanRow) ([]models.Scan, error) {
	scans := make([]models.Scan, 0, len(rows))
	for i := range rows {
		scan, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

// ListScans returns the scans of one target url, newest first.
func (s *SQLStore) ListScans(target string) ([]models.Scan, error) {
	var rows []ScanRow
	if err := s.db.Where("url = ?", target).Order("timestamp desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying scans of %s: %w", target, err)
	}
	return fromRows(rows)
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(scan *models.Scan) (ScanRow, error) {
	findings := scan.Findings
	if findings == nil {
		findings = []models.Finding{}
	}
	data, err := json.Marshal(findings)
	if err != nil {
		return ScanRow{}, fmt.Errorf("encoding findings for %s: %w", scan.ID, err)
	}
	return ScanRow{
		ID:        scan.ID,
		URL:       scan.URL,
		Status:    string(scan.Status),
		Progress:  scan.Progress,
		Error:     scan.Error,
		Findings:  string(data),
		Timestamp: scan.Timestamp,
	}, nil
}

func fromRow(row *ScanRow) (models.Scan, error) {
	scan := models.Scan{
		ID:        row.ID,
		URL:       row.URL,
		Status:    models.ScanStatus(row.Status),
		Progress:  row.Progress,
		Error:     row.Error,
		Timestamp: row.Timestamp,
		Findings:  []models.Finding{},
	}
	if row.Findings != "" {
		if err := json.Unmarshal([]byte(row.Findings), &scan.Findings); err != nil {
			return models.Scan{}, fmt.Errorf("decoding findings for %s: %w", row.ID, err)
		}
	}
	return scan, nil
}
