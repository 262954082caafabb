// Package reader provides the data model and persistence layer for
// access-control readers, the physical devices that gate use of shared
// equipment.
//
// A reader is created either implicitly on first pairing (with a hardware
// serial number) or explicitly by an operator as an unbound shell record.
// Its reported state is device-authoritative telemetry; its commanded
// state is the operator's last request, advisory until the device
// complies. The key cycle is a monotonic counter advanced once per
// pairing that binds each derived session key to a single pairing epoch.
//
// The Repository interface abstracts persistence; SQLiteRepository is the
// production implementation.
package reader
