// Package secrets resolves daemon secrets from AWS SSM Parameter Store at
// startup.
package secrets
