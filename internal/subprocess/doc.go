// Package subprocess provides the default transport: the worker runs as a
// child process and frames travel over its stdin and stdout.
package subprocess
