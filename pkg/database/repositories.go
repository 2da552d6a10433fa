// Copyright 2025 Archon 72 Project
//
// Repositories - Convenience wrapper for all database repositories
// Provides a single point of access to all repository types

package database

// Repositories holds all repository instances
type Repositories struct {
	Events        *EventRepository
	Breaches      *BreachRepository
	Escalations   *EscalationRepository
	Cessations    *CessationRepository
	Dissent       *DissentRepository
	ContentHashes *ContentHashRepository
	CessationFlag *CessationFlagRepository
}

// NewRepositories creates all repositories with the given client
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		Events:        NewEventRepository(client),
		Breaches:      NewBreachRepository(client),
		Escalations:   NewEscalationRepository(client),
		Cessations:    NewCessationRepository(client),
		Dissent:       NewDissentRepository(client),
		ContentHashes: NewContentHashRepository(client),
		CessationFlag: NewCessationFlagRepository(client),
	}
}
