// Package app wires the parsing pipeline into a runnable application: it
// owns the logger, the source loader and the output rendering. Everything
// domain-shaped lives below it; app only composes.
package app
