// Package monitor keeps a small set of DUTs open at once and polls a
// one-line status from each on a fixed cadence.
//
// # Sessions
//
// New dials every target and opens one local port forward per target,
// 127.0.0.1:<base+i> to the DUT's sshd, so the operator can attach other
// tools to a DUT while it is being watched. Ports are assigned in target
// order and owned by their target until Close. If any target can't be
// dialed or forwarded, New closes whatever it already opened and fails.
//
// # Cycles
//
// Each Cycle queries the targets one after another with a single batched
// command (see StatusCommand) and returns one Row per target. A target that
// fails to answer yields an error row; it never aborts the cycle. A slow
// target delays the whole cycle.
//
// # Rendering
//
// Run drives Cycle on an interval and hands every batch of rows to a
// Renderer. Two are provided:
//
//	Dashboard - Bubble Tea table in the alternate screen (q/Ctrl+C quit, r refresh)
//	Plain     - clears the terminal and prints a header and the rows
package monitor
