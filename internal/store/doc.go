// Package store defines the segregated storage capabilities of the hub.
//
// Instead of one repository interface per entity, every CRUD operation is a
// separate capability (Creator, Updater, Deleter and an entity getter). The
// Backends structs compose one implementation per capability, so devices can
// be written to a message bus while being read from a database, or actions
// can be created on the bus and pulled from the pending bridge.
//
// Backends report failures through a small taxonomy:
//
//   - ErrNotFound: the entity addressed by an update or delete is absent
//   - ErrConflict: a create collided with an existing identity
//   - *InternalError: anything else, with the backend's detail preserved
//
// Getters never report ErrNotFound; an absent entity is a nil result.
package store
