// Package directory models the participants of the network and the shared
// registry that indexes them.
//
// A Talker is any protocol participant: a user, a service or a peer server.
// Every directly connected Talker owns exactly one Connection and the two are
// torn down together. Talkers introduced by a peer server have no Connection
// and are reached through their uplink.
//
// The Registry is the only shared directory. It enforces that nicknames and
// server names are unique under the rfc1459 case mapping and that a name is
// visible to lookups as soon as the registering call returns.
package directory
