// Package store provides data access layer interfaces and implementations.
// This package abstracts database operations to improve maintainability
// and decouple business logic from specific database implementations.
package store

import "gorm.io/gorm"

// Store aggregates all data store interfaces.
// It provides a single point of access for all database operations.
type Store interface {
	Installation() InstallationStore
	Repository() RepositoryStore
	Review() ReviewStore
	Usage() UsageStore

	// DB returns the underlying database connection for advanced operations.
	// Use sparingly - prefer using specific store methods.
	DB() *gorm.DB

	// Transaction executes operations within a database transaction.
	Transaction(fn func(Store) error) error
}

// gormStore implements Store interface using GORM.
type gormStore struct {
	db               *gorm.DB
	installationStore InstallationStore
	repositoryStore  RepositoryStore
	reviewStore      ReviewStore
	usageStore       UsageStore
}

// NewStore creates a new Store instance with GORM backend.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:                db,
		installationStore: newInstallationStore(db),
		repositoryStore:   newRepositoryStore(db),
		reviewStore:        newReviewStore(db),
		usageStore:         newUsageStore(db),
	}
}

func (s *gormStore) Installation() InstallationStore {
	return s.installationStore
}

func (s *gormStore) Repository() RepositoryStore {
	return s.repositoryStore
}

func (s *gormStore) Review() ReviewStore {
	return s.reviewStore
}

func (s *gormStore) Usage() UsageStore {
	return s.usageStore
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		txStore := &gormStore{
			db:                tx,
			installationStore: newInstallationStore(tx),
			repositoryStore:   newRepositoryStore(tx),
			reviewStore:        newReviewStore(tx),
			usageStore:         newUsageStore(tx),
		}
		return fn(txStore)
	})
}
