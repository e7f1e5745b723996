// Package toolsvc implements the shared tool service: a catalog
// endpoint, an authenticated call endpoint, and the bearer-token
// permission map that gates them.
package toolsvc

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TokenGrant is one row of the permission snapshot: a bearer token
// permitted to invoke one named tool. The table is seeded once at
// bootstrap and never written to again at runtime — the token → tool
// map it produces is treated as an immutable snapshot for the life of
// the process.
type TokenGrant struct {
	ID    uint   `gorm:"primaryKey"`
	Token string `gorm:"index:idx_token_tool,unique"`
	Tool  string `gorm:"index:idx_token_tool,unique"`
}

// PermissionStore is the immutable, in-memory view of the permission
// snapshot, built once from the database at startup. Lookups never hit
// the database again.
type PermissionStore struct {
	grants map[string]map[string]bool
}

// LoadPermissionStore opens dsn, migrates the grant table, seeds it
// with the default demo tokens when empty, and returns an immutable
// snapshot of every (token, tool) pair it finds.
func LoadPermissionStore(dsn string) (*PermissionStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("token store handle: %w", err)
	}
	defer sqlDB.Close()

	if err := db.AutoMigrate(&TokenGrant{}); err != nil {
		return nil, fmt.Errorf("migrate token store: %w", err)
	}

	var count int64
	if err := db.Model(&TokenGrant{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count token grants: %w", err)
	}
	if count == 0 {
		if err := db.Create(&defaultGrants).Error; err != nil {
			return nil, fmt.Errorf("seed token grants: %w", err)
		}
	}

	var rows []TokenGrant
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load token grants: %w", err)
	}

	grants := make(map[string]map[string]bool)
	for _, row := range rows {
		if grants[row.Token] == nil {
			grants[row.Token] = make(map[string]bool)
		}
		grants[row.Token][row.Tool] = true
	}
	return &PermissionStore{grants: grants}, nil
}

// defaultGrants seeds a store when nothing is configured: a full-access
// token and a token limited to lint.
var defaultGrants = []TokenGrant{
	{Token: "full-token", Tool: "lint"},
	{Token: "full-token", Tool: "run_tests"},
	{Token: "full-token", Tool: "dependency_audit"},
	{Token: "limited-token", Tool: "lint"},
}

// KnownToken reports whether token has any grant at all.
func (p *PermissionStore) KnownToken(token string) bool {
	_, ok := p.grants[token]
	return ok
}

// Allowed reports whether token is permitted to invoke tool. A token
// with no grants at all is never allowed.
func (p *PermissionStore) Allowed(token, tool string) bool {
	tools, ok := p.grants[token]
	if !ok {
		return false
	}
	return tools[tool]
}
