package deploy

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a DeployError for rollback and reporting purposes.
type ErrorClass string

const (
	// ClassDescriptorInvalid marks an unresolvable reference, duplicate
	// external name, or missing SPD discovered before placement begins.
	ClassDescriptorInvalid ErrorClass = "descriptor_invalid"

	// ClassNoCapacity marks exhaustion of device/allocator capacity: no
	// executable devices, no implementation satisfied, or an unmet
	// usesDevice request.
	ClassNoCapacity ErrorClass = "no_capacity"

	// ClassBadAssignment marks a user-supplied device assignment map entry
	// naming an unknown component or unknown device.
	ClassBadAssignment ErrorClass = "bad_assignment"

	// ClassPropertyMath marks a malformed __MATH__ expression or a
	// referenced property that could not be found.
	ClassPropertyMath ErrorClass = "property_math"

	// ClassRemoteFailure marks a failure raised by a remote device during
	// load, execute, initialize, or configure.
	ClassRemoteFailure ErrorClass = "remote_failure"

	// ClassInvalidInit marks configure() reporting invalid or partially
	// applied properties.
	ClassInvalidInit ErrorClass = "invalid_init"

	// ClassTimeout marks a component that never registered with the
	// Application Handle within the configured binding timeout.
	ClassTimeout ErrorClass = "timeout"

	// ClassInternal marks any failure that does not fit the above kinds.
	ClassInternal ErrorClass = "internal"

	// ClassPolicyDenied marks a plan or component rejected by the
	// pre-flight policy gate before placement begins.
	ClassPolicyDenied ErrorClass = "policy_denied"
)

// DeployError is the classified error type threaded through every phase of
// a Transaction. It mirrors the error kinds in the error handling design:
// a Class for programmatic dispatch, an optional Code, the Resource and
// Operation that were in flight, and a wrapped cause.
type DeployError struct {
	Class     ErrorClass             `json:"class"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Resource  string                 `json:"resource,omitempty"`
	Operation string                 `json:"operation,omitempty"`
	Err       error                  `json:"-"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func (e *DeployError) Error() string {
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s): %s",
			e.Class, e.Message, e.Resource, e.Operation, e.unwrapMessage())
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s): %s", e.Class, e.Message, e.Resource, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

func (e *DeployError) Unwrap() error { return e.Err }

func (e *DeployError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is, matching on class
// and code the way sibling errors across retries are compared.
func (e *DeployError) Is(target error) bool {
	t, ok := target.(*DeployError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class ErrorClass, message string, err error) *DeployError {
	return &DeployError{Class: class, Message: message, Err: err}
}

// NewDescriptorInvalidError builds a ClassDescriptorInvalid error.
func NewDescriptorInvalidError(message string, err error) *DeployError {
	return newError(ClassDescriptorInvalid, message, err)
}

// NewNoCapacityError builds a ClassNoCapacity error. No recovery is
// attempted; the caller rolls back the whole transaction.
func NewNoCapacityError(message string, err error) *DeployError {
	return newError(ClassNoCapacity, message, err)
}

// NewBadAssignmentError builds a ClassBadAssignment error for an offending
// (componentId, deviceId) pair from the device assignment map.
func NewBadAssignmentError(componentID, deviceID string) *DeployError {
	return newError(ClassBadAssignment, "unknown component or device in assignment map", nil).
		WithDetail("componentId", componentID).
		WithDetail("deviceId", deviceID)
}

// NewPropertyMathError builds a ClassPropertyMath error for a malformed
// __MATH__ expression or an unresolved referenced property.
func NewPropertyMathError(message string, err error) *DeployError {
	return newError(ClassPropertyMath, message, err)
}

// NewRemoteFailureError builds a ClassRemoteFailure error for a load,
// execute, initialize, or configure call that the remote side rejected.
func NewRemoteFailureError(message string, err error) *DeployError {
	return newError(ClassRemoteFailure, message, err)
}

// NewInvalidInitError builds a ClassInvalidInit error carrying the
// properties configure() reported as invalid or partially applied.
func NewInvalidInitError(invalidProperties []string) *DeployError {
	return newError(ClassInvalidInit, "invalid or partial initial configuration", nil).
		WithDetail("invalidProperties", invalidProperties)
}

// NewTimeoutError builds a ClassTimeout error naming the component that
// never registered with the Application Handle.
func NewTimeoutError(componentID string) *DeployError {
	return newError(ClassTimeout, "component did not register before binding timeout", nil).
		WithResource(componentID).
		WithCode(ErrCodeIO)
}

// NewInternalError builds a ClassInternal error for anything that does not
// fit the named kinds.
func NewInternalError(message string, err error) *DeployError {
	return newError(ClassInternal, message, err).WithCode(ErrCodeNotSet)
}

// NewPolicyDeniedError builds a ClassPolicyDenied error carrying the
// human-readable reasons the policy gate rejected the plan.
func NewPolicyDeniedError(reasons []string) *DeployError {
	return newError(ClassPolicyDenied, "deployment plan rejected by policy", nil).
		WithDetail("reasons", reasons)
}

// WithResource attaches the resource ID involved in the failure.
func (e *DeployError) WithResource(resourceID string) *DeployError {
	e.Resource = resourceID
	return e
}

// WithOperation attaches the name of the operation being performed.
func (e *DeployError) WithOperation(operation string) *DeployError {
	e.Operation = operation
	return e
}

// WithCode attaches a programmatic error code.
func (e *DeployError) WithCode(code string) *DeployError {
	e.Code = code
	return e
}

// WithDetail attaches a single detail field.
func (e *DeployError) WithDetail(key string, value interface{}) *DeployError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ClassOf returns the ErrorClass of err if it is, or wraps, a *DeployError.
func ClassOf(err error) (ErrorClass, bool) {
	var e *DeployError
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsNoCapacity reports whether err is classified ClassNoCapacity.
func IsNoCapacity(err error) bool {
	class, ok := ClassOf(err)
	return ok && class == ClassNoCapacity
}

// IsBadAssignment reports whether err is classified ClassBadAssignment.
func IsBadAssignment(err error) bool {
	class, ok := ClassOf(err)
	return ok && class == ClassBadAssignment
}

// IsTimeout reports whether err is classified ClassTimeout.
func IsTimeout(err error) bool {
	class, ok := ClassOf(err)
	return ok && class == ClassTimeout
}

// Legacy CF-style error codes carried by CreateApplicationError for callers
// that inspect them the way the original CORBA errno was inspected.
const (
	ErrCodeIO     = "CF_EIO"
	ErrCodeNotSet = "CF_NOTSET"
)

// CreateApplicationError is the generic failure shape returned by Create
// for RemoteFailure, Timeout, and Internal classes.
type CreateApplicationError struct {
	Errno   string
	Message string
}

func (e *CreateApplicationError) Error() string {
	return fmt.Sprintf("create application failed (%s): %s", e.Errno, e.Message)
}

// CreateApplicationRequestError is returned when the caller-supplied
// device assignment map or collocation placement cannot be satisfied as
// requested.
type CreateApplicationRequestError struct {
	BadAssignments []BadAssignment
	Message        string
}

// BadAssignment names one offending (componentId, deviceId) pair from the
// device assignment map.
type BadAssignment struct {
	ComponentID string
	DeviceID    string
}

func (e *CreateApplicationRequestError) Error() string {
	return fmt.Sprintf("create application request invalid: %s (%d bad assignment(s))", e.Message, len(e.BadAssignments))
}

// CreateApplicationInsufficientCapacityError is returned when placement
// exhausts every device/implementation combination without success.
type CreateApplicationInsufficientCapacityError struct {
	Message string
}

func (e *CreateApplicationInsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: %s", e.Message)
}

// InvalidInitConfiguration is returned when configure() reports invalid or
// partially-applied initial configuration properties.
type InvalidInitConfiguration struct {
	InvalidProperties []string
}

func (e *InvalidInitConfiguration) Error() string {
	return fmt.Sprintf("invalid initial configuration: %v", e.InvalidProperties)
}

// PropertyMatchingError is returned by the math-expression evaluator when a
// __MATH__ expression is malformed or its referenced property is missing.
type PropertyMatchingError struct {
	PropertyID string
	Reason     string
}

func (e *PropertyMatchingError) Error() string {
	return fmt.Sprintf("property matching failed for %q: %s", e.PropertyID, e.Reason)
}

// AsCreateApplicationError maps a *DeployError of class RemoteFailure,
// Timeout, or Internal onto the legacy CreateApplicationError shape
// expected at the Create boundary.
func AsCreateApplicationError(err error) *CreateApplicationError {
	var de *DeployError
	if !errors.As(err, &de) {
		return &CreateApplicationError{Errno: ErrCodeNotSet, Message: err.Error()}
	}
	code := de.Code
	if code == "" {
		code = ErrCodeNotSet
	}
	return &CreateApplicationError{Errno: code, Message: de.Error()}
}
