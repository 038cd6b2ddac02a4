package infra

import (
	"fmt"

	"cspacehr/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection backed by pgx and brings the schema up to date.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table, then applies the patches
// AutoMigrate cannot express. Safe to re-run.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Branch{},
		&model.Employee{},
		&model.User{},
		&model.BranchAccessGrant{},
		&model.OperatorSwitchLog{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL: partial indexes and foreign keys.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// operator roster lookup only touches employees holding a PIN
		{"idx_employees_roster", `
CREATE INDEX IF NOT EXISTS idx_employees_roster
    ON employees (branch_id)
    WHERE active AND pin_hash <> ''`},
		{"idx_users_email_lower", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower
    ON users (LOWER(email))`},
		{"fk grants → users", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_grants_user') THEN
    ALTER TABLE branch_access_grants
      ADD CONSTRAINT fk_grants_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;
  END IF;
END $$`},
		{"fk grants → branches", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_grants_branch') THEN
    ALTER TABLE branch_access_grants
      ADD CONSTRAINT fk_grants_branch FOREIGN KEY (branch_id) REFERENCES branches(id) ON DELETE CASCADE;
  END IF;
END $$`},
		{"fk employees → branches", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_employees_branch') THEN
    ALTER TABLE employees
      ADD CONSTRAINT fk_employees_branch FOREIGN KEY (branch_id) REFERENCES branches(id);
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
