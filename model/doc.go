// Package model defines stable boundary types for CLI output and API layers.
//
// Content identity (block bytes and CIDs) is unaffected by any projection.
// These structs are the only types intended for direct JSON serialization by
// consumers.
package model
