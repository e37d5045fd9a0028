// Package stores provides persistence layer implementations for the
// Application Factory daemon. It includes SQLite-based storage with WAL
// mode, connection pooling, and CRUD operations for deployments,
// component placements, events, device state, facts, and audit logs.
package stores
