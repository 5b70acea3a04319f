// Package cli turns command-line arguments into an app configuration.
package cli
