// Package server implements the connection pipeline of the GoChat IRC server.
//
// A Server owns the TCP listener and a Hub per running generation. For every
// accepted transport the hub starts a reader, which frames lines onto the
// connection's input queue, and a writer, which renders the talker's queued
// replies. A fixed pool of dispatch workers runs the command dispatcher for
// connections with pending input. The implementation is organized into
// specialized files for configuration, the hub, clients, workers, transports,
// routing and HTTP handlers.
package server
