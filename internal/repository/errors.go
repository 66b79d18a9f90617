// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// leaking storage details. For example, ErrDuplicateActiveSubscription
// signals that the single-active-subscription invariant would be broken,
// while ErrInvalidSession covers every bad refresh token the same way.
package repository

import "errors"

// ErrNotFound is returned when a principal, plan, resource or assignment
// does not exist. Handlers should translate this into an HTTP 404 (or a
// 401 on credential paths, where existence must not be revealed).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when creating a principal with an email that
// is already registered. Handlers should translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidSession is returned for a refresh token that is unknown,
// expired or already consumed by rotation. All three cases look identical
// to the caller so a replayed token learns nothing. Handlers should clear
// both auth cookies and respond 401.
var ErrInvalidSession = errors.New("invalid session")

// ErrDuplicateActiveSubscription is returned when a create or update would
// leave a principal with two assignments in status active. Handlers should
// translate this into HTTP 409.
var ErrDuplicateActiveSubscription = errors.New("principal already has an active subscription")

// ErrPlanMismatch is returned when a plan's target kind does not match the
// purchasing principal, or a user-kind plan is bought for a non-consumer
// role. Handlers should translate this into HTTP 422.
var ErrPlanMismatch = errors.New("plan does not match principal kind or role")

// ErrExpiredAssignment is returned when an update tries to move an expired
// assignment back to active. Renewal requires a new assignment record.
var ErrExpiredAssignment = errors.New("expired assignment cannot be reactivated")
