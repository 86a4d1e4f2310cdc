// Package ingest holds the inbound adapters that feed the services from
// outside the HTTP API: the message-bus consumer and the serial line reader.
package ingest
