package main

import "sync/atomic"

// gradDisabled counts active no-grad scopes. Ops record onto the tape only
// while it is zero.
var gradDisabled atomic.Int32

// IsGradEnabled reports whether tensor ops currently record gradient history.
func IsGradEnabled() bool {
	return gradDisabled.Load() == 0
}

// GradScope is a scoped toggle over gradient recording. Callers pair Enter
// with a deferred Exit:
//
//	scope := MaybeNoGrad(evaluating)
//	scope.Enter()
//	defer scope.Exit()
type GradScope interface {
	Enter()
	Exit()
}

type noGradScope struct{}

func (noGradScope) Enter() { gradDisabled.Add(1) }
func (noGradScope) Exit()  { gradDisabled.Add(-1) }

// nopScope does nothing on either side. It lets call sites keep one shape
// whether or not gradients are disabled.
type nopScope struct{}

func (nopScope) Enter() {}
func (nopScope) Exit()  {}

// NoGrad returns a scope that disables gradient recording while entered.
// Scopes nest.
func NoGrad() GradScope {
	return noGradScope{}
}

// MaybeNoGrad returns NoGrad() when noGrad is true and an inert scope
// otherwise.
func MaybeNoGrad(noGrad bool) GradScope {
	if noGrad {
		return noGradScope{}
	}
	return nopScope{}
}
