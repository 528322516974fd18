// Package testutil provides identity and configuration fixtures shared by the
// tests of the coordinator packages.
package testutil
