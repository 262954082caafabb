// Package liveness decides whether a reader's reported state can be
// trusted, based purely on how recently the device last reported.
package liveness
