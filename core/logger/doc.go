// Package logger holds the shell's two logging channels: leveled
// diagnostics for operators and a JSON lines audit log of what sessions ran.
package logger
