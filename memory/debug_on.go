//go:build batchdebug

package memory

const debugChecks = true
