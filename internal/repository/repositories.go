package repository

import "database/sql"

// Repositories bundles every concrete repository behind its interface,
// constructed once at startup and handed to the service layer.
type Repositories struct {
	Sessions      SessionRepository
	Content       ContentRepository
	Ownership     OwnershipRepository
	Ledger        LedgerRepository
	Subscriptions SubscriptionRepository
	Reviews       ReviewRepository
	Catalog       CatalogRepository
}

// NewRepositories constructs all repositories against a single database connection.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Sessions:      NewSQLiteSessionRepository(db),
		Content:       NewSQLiteContentRepository(db),
		Ownership:     NewSQLiteOwnershipRepository(db),
		Ledger:        NewSQLiteLedgerRepository(db),
		Subscriptions: NewSQLiteSubscriptionRepository(db),
		Reviews:       NewSQLiteReviewRepository(db),
		Catalog:       NewSQLiteCatalogRepository(db),
	}
}
