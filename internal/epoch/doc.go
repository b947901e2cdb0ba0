// Package epoch decides which parcels are released for auction at a given
// time.
//
// The engine depends only on the Policy interface. Schedule is the
// production implementation: a list of epochs, each opening a set of
// parcel id ranges at its start time, compiled from a CUE document and
// validated against an embedded schema.
//
// Release is cumulative: once an epoch has started, its ranges stay
// released for every later epoch. Mapping parcels to epochs by id range
// is a deployment convention, not something the ledger can derive; a
// deployment without a schedule runs with AllowAll.
package epoch
