package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/prep-assistant/internal/experience"
	"github.com/spigell/prep-assistant/internal/logger"
	"github.com/spigell/prep-assistant/internal/store"
)

// importRecord is one experience in an import file.
type importRecord struct {
	ID            string             `yaml:"id"`
	Company       string             `yaml:"company"`
	Role          string             `yaml:"role"`
	UserName      string             `yaml:"user_name"`
	InterviewDate string             `yaml:"interview_date"`
	Upvotes       int                `yaml:"upvotes"`
	Rounds        []experience.Round `yaml:"rounds"`
}

type importFile struct {
	Experiences []importRecord `yaml:"experiences"`
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load interview experiences from a YAML file into the SQL store",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runImport(args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(path string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	records, err := readImportFile(path)
	if err != nil {
		logger.Fatal("reading import file", zap.Error(err))
	}

	driver := strings.ToLower(strings.TrimSpace(config.Store.Backend))
	if driver != store.DriverPostgres && driver != store.DriverSQLite {
		logger.Fatal("import needs a sql store",
			zap.String("backend", config.Store.Backend),
			zap.String("hint", "set store.backend to postgres or sqlite and store.dsn (or DATABASE_URL)"),
		)
	}

	sqlStore, err := store.OpenSQL(driver, config.Store.DSN)
	if err != nil {
		logger.Fatal("opening sql store", zap.Error(err))
	}
	if err := sqlStore.Migrate(); err != nil {
		logger.Fatal("migrating sql store", zap.Error(err))
	}

	imported, err := importExperiences(ctx, sqlStore, records)
	if err != nil {
		logger.Fatal("importing experiences", zap.Error(err), zap.Int("imported", imported))
	}

	total, err := sqlStore.Count(ctx)
	if err != nil {
		logger.Warn("counting experiences", zap.Error(err))
	}

	logger.Info("import finished", zap.Int("imported", imported), zap.Int64("total", total))
}

func readImportFile(path string) ([]experience.Experience, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file importFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	records := make([]experience.Experience, 0, len(file.Experiences))
	for i, r := range file.Experiences {
		if strings.TrimSpace(r.Company) == "" || strings.TrimSpace(r.Role) == "" {
			return nil, fmt.Errorf("experience #%d: company and role are required", i+1)
		}
		records = append(records, experience.Experience{
			ID:            r.ID,
			Company:       strings.TrimSpace(r.Company),
			Role:          strings.TrimSpace(r.Role),
			UserName:      r.UserName,
			InterviewDate: r.InterviewDate,
			Upvotes:       r.Upvotes,
			Rounds:        r.Rounds,
		})
	}

	return records, nil
}

type experienceWriter interface {
	Create(ctx context.Context, e *experience.Experience) error
}

func importExperiences(ctx context.Context, w experienceWriter, records []experience.Experience) (int, error) {
	for i := range records {
		if err := w.Create(ctx, &records[i]); err != nil {
			return i, fmt.Errorf("experience #%d (%s - %s): %w", i+1, records[i].Company, records[i].Role, err)
		}
	}
	return len(records), nil
}
