// ABOUTME: Package documentation for protocol
// ABOUTME: Describes the monitor wire protocol
/*
Package protocol defines the wire messages spoken between an engine's
monitor server and its clients.

Text messages are JSON wrapped in Message with a type string. The
connection opens with a client/hello and server/hello exchange, after
which the server pushes server/stats snapshots. Clients that asked for
the master tap also receive binary frames built by CreateTapChunk.
*/
package protocol
