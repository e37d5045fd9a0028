// Package deploy implements the Application Factory: deploying a parsed
// software assembly descriptor onto a domain's registered devices.
//
// # Overview
//
// A deployment proceeds through the phases a Transaction drives end to
// end:
//
//  1. Preflight - strip the reserved TRUSTED_APPLICATION init property,
//     load the assembly descriptor, compute start order, identify the
//     assembly controller (preflightAndPlan)
//  2. Resolve - resolve each component's usesDevice dependencies and
//     soft-package implementation tree (UsesDeviceAllocator, Resolver)
//  3. Place - choose a device and implementation for every component,
//     honoring any caller-supplied overrides and collocation
//     constraints (Placer, Collocator)
//  4. Construct - build the Application Handle that tracks every
//     component's lifecycle state (ApplicationHandle)
//  5. Load/Execute - stage component code onto its assigned device and
//     spawn it (Device)
//  6. Register/Initialize/Connect/Configure - wait for each component to
//     register, then drive CF Resource initialize, wire declared
//     connections, and configure (ApplicationHandle)
//  7. Publish - register external ports and properties (Wirer) and hand
//     back the completed Application Handle, or run the rollback-closure
//     stack accumulated across the prior phases on any failure
//
// # Core Domain Types
//
//   - ComponentSpec: one component instance from the assembly descriptor
//   - ImplSpec: one candidate implementation of a component
//   - DeviceNode: one registered device snapshot taken at preflight
//   - DeploymentPlan: the working state threaded through every phase
//   - AllocationRequest/AllocationResponse: the capacity reservation
//     protocol between the Placer and the AllocationManager
//
// # Collaborator Interfaces
//
// A Transaction is assembled from narrow interfaces so each phase can be
// tested and replaced independently:
//
//   - DescriptorLoader: parses a software assembly descriptor file
//   - AllocationManager: reserves and releases device capacity
//   - DomainManager: the registered-device directory, deployment affinity,
//     binding timeout, domain properties, and file manager
//   - DeviceDialer: resolves a DeviceNode's opaque remote handle into a
//     usable Device
//   - PolicyGate: an optional pre-flight guard-rail check
//
// # Error Classification
//
// Every failure is a *DeployError carrying one of the ErrorClass values
// (descriptor_invalid, no_capacity, bad_assignment, property_math,
// remote_failure, invalid_init, timeout, policy_denied, internal), letting
// a caller dispatch on failure kind with errors.As rather than string
// matching.
package deploy
