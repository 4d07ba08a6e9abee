// Package postgres provides PostgreSQL database adapters.
//
// It implements the session, plan, and snapshot repository ports. All
// interview state lives here; nothing is cached in process memory across
// requests, so any server instance can pick up any session.
package postgres
