// Package service implements the hub's use cases on top of composed
// storage backends.
//
// Services never retry. Storage errors are translated into four kinds,
// checked with errors.Is:
//
//	ErrNotFound      the entity does not exist
//	ErrAlreadyExists the identity is taken
//	ErrInvalidInput  the request failed validation
//	ErrInternal      anything else; Detail(err) returns the backend detail
package service
