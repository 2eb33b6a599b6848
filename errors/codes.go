// Package errors provides the structured error handling system for pkgci.
// It extends Go's standard error handling with string error codes, context
// preservation, and wrapping helpers used across the pipeline packages.
package errors

// ErrorCode represents a specific error condition in a pipeline run.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Pipeline stage errors.

	// CodeProvisioningFailed indicates the environment/dependency setup failed.
	// Fatal: the run cannot continue without a working environment.
	CodeProvisioningFailed ErrorCode = "PROVISIONING_FAILED"

	// CodeBuildFailed indicates the package artifact build failed.
	CodeBuildFailed ErrorCode = "BUILD_FAILED"

	// CodeTestFailed indicates a test, coverage, or lint step returned non-zero.
	CodeTestFailed ErrorCode = "TEST_FAILED"

	// CodeDocsFailed indicates the documentation build failed.
	// Fatal only to the documentation publish action, not the run.
	CodeDocsFailed ErrorCode = "DOCS_FAILED"

	// CodePublishFailed indicates a firing publish action's upload or
	// deploy step failed. Reported once; there is no retry policy.
	CodePublishFailed ErrorCode = "PUBLISH_FAILED"

	// Execution errors.

	// CodeExecutionFailed indicates an external command could not be run at
	// all (binary missing, context cancelled) as opposed to exiting non-zero.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// Configuration errors.

	// CodeInvalidConfig indicates a configuration error prevents the run.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeInvalidInput indicates provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Credential errors.

	// CodeCredentialMissing indicates a credential required by an executing
	// action was absent at resolution time. Gate rules never produce this:
	// a missing credential skips the rule instead.
	CodeCredentialMissing ErrorCode = "CREDENTIAL_MISSING"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
