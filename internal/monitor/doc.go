// Package monitor is the interactive terminal view of a live robot session.
//
// The screen is split into a status header (port, robot position, transfer
// progress, last saved file), a scrolling log of robot output and a command
// line. Typed commands go to the robot with a trailing CRLF; preset names
// from the robot package are expanded first, and a leading "!" selects a
// console control sequence:
//
//	!raw        ctrl-A, raw REPL
//	!normal     ctrl-B, normal REPL
//	!interrupt  ctrl-C twice, then ctrl-D
//	!reset      ctrl-D, soft reset
//
// Stream events reach the model through Handler, which implements
// stream.Handler by posting messages to the running tea.Program.
package monitor
