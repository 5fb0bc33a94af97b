// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: BaseModel shared by every table with id/created_at/updated_at
// - catalog.go: products, product_variants, product_images, products_enhanced
// - order.go: orders, checkout_sessions, stock_reservations
// - customer.go: customers and the users auth mirror
// - logs.go: webhook_logs and email_logs
//
// JSON columns are stored as strings and encoded in the mappers.
package models
