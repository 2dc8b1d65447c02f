package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log-sentinel/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type logRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Timestamp string `gorm:"index"`
	Level     string `gorm:"size:32;index"`
	Logger    string
	Message   string
	SourceIP  string
	Raw       string
	LoggedAt  time.Time `gorm:"index"`
}

func (logRow) TableName() string { return "logs" }

type alertRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Timestamp    time.Time `gorm:"index"`
	RuleID       string    `gorm:"index"`
	RuleName     string
	Severity     string `gorm:"size:16;index"`
	Message      string
	SourceIP     string
	MitreAttack  string
	LogID        int64 `gorm:"index"`
	Acknowledged bool  `gorm:"not null;default:false"`
}

func (alertRow) TableName() string { return "alerts" }

// GormStore persists to sqlite or postgres through GORM.
type GormStore struct {
	db     *gorm.DB
	driver string
	logger *logrus.Logger
}

// Open connects to the database selected by driver and migrates the schema.
// For sqlite the dsn is a file path; its parent directory is created.
func Open(driver, dsn string, logger *logrus.Logger) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(sqliteDSN(dsn))
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if err := db.AutoMigrate(&logRow{}, &alertRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Infof("Opened %s store", driver)
	return &GormStore{db: db, driver: driver, logger: logger}, nil
}

// sqliteDSN enables WAL so that readers do not block the ingestion writer.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *GormStore) AppendLog(ctx context.Context, rec model.LogRecord) (int64, error) {
	row := logRow{
		Timestamp: rec.Timestamp,
		Level:     string(rec.Level),
		Logger:    rec.Logger,
		Message:   rec.Message,
		SourceIP:  rec.SourceIP,
		Raw:       rec.Raw,
		LoggedAt:  rec.LoggedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to insert log: %w", err)
	}
	return row.ID, nil
}

func (s *GormStore) AppendAlert(ctx context.Context, a model.Alert) (int64, error) {
	row := alertRow{
		Timestamp:    a.Timestamp.UTC(),
		RuleID:       a.RuleID,
		RuleName:     a.RuleName,
		Severity:     string(a.Severity),
		Message:      a.Message,
		SourceIP:     a.SourceIP,
		MitreAttack:  a.MitreAttack,
		LogID:        a.LogID,
		Acknowledged: a.Acknowledged,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	return row.ID, nil
}

func (s *GormStore) QueryLogs(ctx context.Context, f LogFilter) ([]model.LogRecord, error) {
	q := s.db.WithContext(ctx).Model(&logRow{})
	if f.Level != "" {
		q = q.Where("level = ?", string(f.Level))
	}
	if !f.Since.IsZero() {
		q = q.Where("logged_at > ?", f.Since.UTC())
	}
	if f.Search != "" {
		q = q.Where(`LOWER(message) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(f.Search))+"%")
	}
	q = orderAndLimit(q, f.OldestFirst, f.Limit)

	var rows []logRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	return toLogRecords(rows), nil
}

func (s *GormStore) QueryAlerts(ctx context.Context, f AlertFilter) ([]model.Alert, error) {
	q := s.db.WithContext(ctx).Model(&alertRow{})
	if f.Severity != "" {
		q = q.Where("severity = ?", string(f.Severity))
	}
	if !f.Since.IsZero() {
		q = q.Where("timestamp > ?", f.Since.UTC())
	}
	if f.UnacknowledgedOnly {
		q = q.Where("acknowledged = ?", false)
	}
	q = orderAndLimit(q, f.OldestFirst, f.Limit)

	var rows []alertRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	alerts := make([]model.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, row.toAlert())
	}
	return alerts, nil
}

func (s *GormStore) LogsByIDRange(ctx context.Context, from, to int64) ([]model.LogRecord, error) {
	var rows []logRow
	err := s.db.WithContext(ctx).
		Where("id BETWEEN ? AND ?", from, to).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query logs by id: %w", err)
	}
	return toLogRecords(rows), nil
}

func (s *GormStore) GetAlert(ctx context.Context, id int64) (model.Alert, error) {
	var row alertRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Alert{}, ErrNotFound
	}
	if err != nil {
		return model.Alert{}, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return row.toAlert(), nil
}

func (s *GormStore) AcknowledgeAlert(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row alertRow
		err := tx.Select("id").First(&row, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get alert %d: %w", id, err)
		}
		if err := tx.Model(&alertRow{}).Where("id = ?", id).Update("acknowledged", true).Error; err != nil {
			return fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
		}
		return nil
	})
}

type groupCount struct {
	Name  string
	Total int64
}

func (s *GormStore) Stats(ctx context.Context) (Stats, error) {
	stats := newStats()
	db := s.db.WithContext(ctx)

	if err := db.Model(&logRow{}).Count(&stats.TotalLogs).Error; err != nil {
		return stats, fmt.Errorf("failed to count logs: %w", err)
	}
	if err := db.Model(&alertRow{}).Count(&stats.TotalAlerts).Error; err != nil {
		return stats, fmt.Errorf("failed to count alerts: %w", err)
	}
	if err := db.Model(&alertRow{}).Where("acknowledged = ?", false).Count(&stats.UnacknowledgedAlerts).Error; err != nil {
		return stats, fmt.Errorf("failed to count unacknowledged alerts: %w", err)
	}

	groups := []struct {
		column string
		into   map[string]int64
	}{
		{"severity", stats.AlertsBySeverity},
		{"rule_id", stats.AlertsByRule},
	}
	for _, g := range groups {
		var counts []groupCount
		err := db.Model(&alertRow{}).
			Select(g.column + " AS name, COUNT(*) AS total").
			Group(g.column).
			Scan(&counts).Error
		if err != nil {
			return stats, fmt.Errorf("failed to group alerts by %s: %w", g.column, err)
		}
		for _, c := range counts {
			g.into[c.Name] = c.Total
		}
	}
	return stats, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.logger.Infof("Closing %s store", s.driver)
	return sqlDB.Close()
}

func orderAndLimit(q *gorm.DB, oldestFirst bool, limit int) *gorm.DB {
	if oldestFirst {
		q = q.Order("id ASC")
	} else {
		q = q.Order("id DESC")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func toLogRecords(rows []logRow) []model.LogRecord {
	records := make([]model.LogRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.LogRecord{
			ID:        row.ID,
			Timestamp: row.Timestamp,
			Level:     model.Level(row.Level),
			Logger:    row.Logger,
			Message:   row.Message,
			SourceIP:  row.SourceIP,
			Raw:       row.Raw,
			LoggedAt:  row.LoggedAt.Local(),
		})
	}
	return records
}

func (row alertRow) toAlert() model.Alert {
	return model.Alert{
		ID:           row.ID,
		Timestamp:    row.Timestamp.Local(),
		RuleID:       row.RuleID,
		RuleName:     row.RuleName,
		Severity:     model.Severity(row.Severity),
		Message:      row.Message,
		SourceIP:     row.SourceIP,
		MitreAttack:  row.MitreAttack,
		LogID:        row.LogID,
		Acknowledged: row.Acknowledged,
	}
}
