package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spigell/prep-assistant/internal/experience"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SQLStore reads and writes experiences directly in the relational database.
type SQLStore struct {
	DB *gorm.DB
}

// OpenSQL connects to the database behind the BaaS (postgres) or a local sqlite file.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is required", driver)
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLStore{DB: db}, nil
}

// Migrate creates the experiences table when it does not exist yet.
func (s *SQLStore) Migrate() error {
	if err := s.DB.AutoMigrate(&experience.Experience{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *SQLStore) Find(ctx context.Context, q Query) ([]experience.Experience, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	tx := s.DB.WithContext(ctx).Model(&experience.Experience{})

	if len(q.Any) > 0 {
		conds := make([]string, 0, len(q.Any))
		args := make([]any, 0, len(q.Any))
		for _, c := range q.Any {
			switch c.Op {
			case OpEq:
				conds = append(conds, fmt.Sprintf("%s = ?", c.Field))
				args = append(args, c.Value)
			case OpILike:
				conds = append(conds, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, c.Field))
				args = append(args, "%"+likeEscaper.Replace(strings.ToLower(c.Value))+"%")
			}
		}
		tx = tx.Where(strings.Join(conds, " OR "), args...)
	}

	for _, o := range q.Order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("%s %s", o.Field, dir))
	}

	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var records []experience.Experience
	if err := tx.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find experiences: %w", err)
	}
	return records, nil
}

// Create inserts an experience, filling its id, full-text blob and creation time when missing.
func (s *SQLStore) Create(ctx context.Context, e *experience.Experience) error {
	if strings.TrimSpace(e.Company) == "" || strings.TrimSpace(e.Role) == "" {
		return fmt.Errorf("company and role are required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.EnsureFullText()

	if err := s.DB.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create experience: %w", err)
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&experience.Experience{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count experiences: %w", err)
	}
	return n, nil
}
