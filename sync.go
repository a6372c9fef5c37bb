package main

import (
	"github.com/pkg/errors"
)

// ErrParameterMismatch is returned when two modules cannot be synchronized
// because their parameter lists differ in length or shape.
var ErrParameterMismatch = errors.New("sync: source and target parameters do not match")

// SoftUpdate moves target's parameters towards source's:
//
//	target = target*(1-tau) + source*tau
//
// Parameters are paired by position. The update writes values directly and
// records no gradient history. On mismatch target is left untouched.
func SoftUpdate(source, target Module, tau float64) error {
	src, dst, err := pairParameters(source, target)
	if err != nil {
		return err
	}
	for i := range dst {
		s, d := src[i].data, dst[i].data
		for j := range d {
			d[j] = d[j]*(1-tau) + s[j]*tau
		}
	}
	return nil
}

// HardUpdate copies source's parameters into target.
func HardUpdate(source, target Module) error {
	src, dst, err := pairParameters(source, target)
	if err != nil {
		return err
	}
	for i := range dst {
		copy(dst[i].data, src[i].data)
	}
	return nil
}

func pairParameters(source, target Module) (src, dst []*Tensor, err error) {
	src, dst = source.Parameters(), target.Parameters()
	if len(src) != len(dst) {
		return nil, nil, errors.Wrapf(ErrParameterMismatch, "source has %d parameters, target has %d", len(src), len(dst))
	}
	for i := range src {
		if !shapeEqual(src[i].shape, dst[i].shape) {
			return nil, nil, errors.Wrapf(ErrParameterMismatch, "parameter %d: source shape %v, target shape %v", i, src[i].shape, dst[i].shape)
		}
	}
	return src, dst, nil
}
