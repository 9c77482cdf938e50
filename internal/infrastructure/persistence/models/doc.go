// Package models contains GORM persistence models. Domain entities stay free
// of ORM tags; repositories convert with the FromDomain/ToDomain pairs here.
//
//   - base.go: shared identity and version columns
//   - academic.go: tenants, academic sessions, roster
//   - fee.go: schedules, dues, occasional charges, payment orders
//   - outbox.go: transactional outbox for settlement events
package models
