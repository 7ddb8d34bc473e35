package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

//go:embed sql/pre_automigrate.sql
var preAutoMigrateSQL string

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

type migrationStep struct {
	label string
	run   func(tx *gorm.DB) error
}

// autoMigrate creates the news schema, lets gorm reconcile the model tables,
// then applies indexes and checks gorm tags cannot express.
func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	steps := []migrationStep{
		{label: "pre-auto-migrate SQL", run: rawSQLStep(preAutoMigrateSQL)},
		{label: "gorm auto-migrate models", run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(autoMigrateModels()...)
		}},
		{label: "post-auto-migrate SQL", run: rawSQLStep(postAutoMigrateSQL)},
	}

	gdb := p.gdb.WithContext(ctx)
	for _, step := range steps {
		if err := step.run(gdb); err != nil {
			return fmt.Errorf("%s: %w", step.label, err)
		}
	}
	return nil
}

func rawSQLStep(sqlText string) func(tx *gorm.DB) error {
	trimmed := strings.TrimSpace(sqlText)
	return func(tx *gorm.DB) error {
		if trimmed == "" {
			return nil
		}
		return tx.Exec(trimmed).Error
	}
}
