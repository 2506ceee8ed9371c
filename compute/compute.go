// Package compute implements the math-dispatch boundary (C6,
// spec.md §4 "math dispatch", §7): the single place every tensor
// operation passes through on its way to a backend kernel. It
// performs the checks spec.md §7 assigns to the dispatcher itself
// (same-driver, aliasing, and the ambient-context fallback resolution
// of spec.md §5) before handing canonical arguments to a registered
// driver.Driver's Engine.
package compute

import (
	"reflect"

	"github.com/arbalest-compute/compute/compctx"
	"github.com/arbalest-compute/compute/cpu"
	"github.com/arbalest-compute/compute/driver"
	"github.com/arbalest-compute/compute/errs"
	"github.com/arbalest-compute/compute/tensor"
)

// Engine is the math-dispatch capability a backend package registers
// under its driver name (mirroring driver.Register/Get at the
// compute layer, spec.md §6). The reference backend's cpu package is
// the only implementation in this tree; a second backend would add
// its own Engine and call RegisterEngine from its init().
type Engine interface {
	Unary(op cpu.UnaryOp, dstD, srcD tensor.Tensor, unchecked bool) error
	Binary(op cpu.BinaryOp, dst, a, b tensor.Tensor, unchecked bool) error
	Select(dst, cond, a, b tensor.Tensor, unchecked bool) error
	Reduce(op cpu.ReduceOp, dst, src tensor.Tensor, unchecked bool) error
	Gemm(transA, transB bool, alpha, beta float64, c, a, b tensor.Tensor) error
	Rand(dist cpu.RandDistribution, dst tensor.Tensor, seed int64, p1, p2 float64) error
}

type cpuEngine struct{}

func (cpuEngine) Unary(op cpu.UnaryOp, dst, src tensor.Tensor, unchecked bool) error {
	return cpu.Unary(op, dst.Dims, src.Dims, dst.Buf, src.Buf, unchecked)
}

func (cpuEngine) Binary(op cpu.BinaryOp, dst, a, b tensor.Tensor, unchecked bool) error {
	return cpu.Binary(op, dst.Dims, a.Dims, b.Dims, dst.Buf, a.Buf, b.Buf, unchecked)
}

func (cpuEngine) Select(dst, cond, a, b tensor.Tensor, unchecked bool) error {
	return cpu.Select(dst.Dims, cond.Dims, a.Dims, b.Dims, dst.Buf, cond.Buf, a.Buf, b.Buf, unchecked)
}

func (cpuEngine) Reduce(op cpu.ReduceOp, dst, src tensor.Tensor, unchecked bool) error {
	return cpu.Reduce(op, dst.Dims, src.Dims, dst.Buf, src.Buf, unchecked)
}

func (cpuEngine) Gemm(transA, transB bool, alpha, beta float64, c, a, b tensor.Tensor) error {
	return cpu.Gemm(cpu.GemmArgs{
		TransA: transA, TransB: transB,
		Alpha: alpha, Beta: beta,
		ADims: a.Dims, BDims: b.Dims, CDims: c.Dims,
		ABuf: a.Buf, BBuf: b.Buf, CBuf: c.Buf,
	})
}

func (cpuEngine) Rand(dist cpu.RandDistribution, dst tensor.Tensor, seed int64, p1, p2 float64) error {
	return cpu.Rand(dist, dst.Dims, dst.Buf, seed, p1, p2)
}

var engines = map[string]Engine{
	cpu.DriverName: cpuEngine{},
}

// RegisterEngine associates a driver name with the Engine a backend
// package implements. Called from that package's init().
func RegisterEngine(driverName string, e Engine) {
	engines[driverName] = e
}

func engineFor(driverName string) (Engine, error) {
	e, ok := engines[driverName]
	if !ok {
		return nil, errs.NewUnknownDriverError(driverName)
	}
	return e, nil
}

// sameDriver requires every operand share one driver (spec.md §7:
// dispatch is a purely local decision keyed on the destination's
// driver; crossing drivers within one call is always a usage error,
// just as SyncWithStream rejects streams of two different drivers).
func sameDriver(ts ...tensor.Tensor) (string, error) {
	name := ts[0].Buf.Driver().Name()
	for _, t := range ts[1:] {
		if t.Buf.Driver().Name() != name {
			return "", errs.NewCrossDriverError(name, t.Buf.Driver().Name())
		}
	}
	return name, nil
}

// checkAliasAllowed permits dst and operand to be the exact same
// view — the same buffer range and identical Dims (true in-place
// operation) — but rejects any other overlap (spec.md §3: partial
// aliasing between an output and an input it does not also serve as
// is always disallowed).
func checkAliasAllowed(dst, operand tensor.Tensor) error {
	if driver.Aliases(dst.Buf, operand.Buf) && reflect.DeepEqual(dst.Dims, operand.Dims) {
		return nil
	}
	return tensor.CheckNoAlias(dst, operand)
}

// checkGemmOperandAlias rejects any overlap between C and an A/B
// operand, including the exact-same-buffer-view case checkAliasAllowed
// permits for in-place unary/binary/select ops. Gemm reads A and B in
// full before it writes any element of C, and the canonicalization in
// cpu.Gemm may reorder reads relative to C's writes, so C aliasing A or
// B — even identically — is never safe (spec.md §8 scenario 5).
func checkGemmOperandAlias(c, operand tensor.Tensor) error {
	if driver.Aliases(c.Buf, operand.Buf) {
		return errs.NewAliasError("gemm: C must not alias A or B")
	}
	return tensor.CheckNoAlias(c, operand)
}

func resolveUnchecked(explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	return compctx.UncheckedOrDefault(false)
}

// Unary dispatches a unary math op (spec.md §4 math dispatch). unchecked,
// if nil, falls back to the ambient context's Unchecked field.
func Unary(op cpu.UnaryOp, dst, src tensor.Tensor, unchecked *bool) error {
	name, err := sameDriver(dst, src)
	if err != nil {
		return err
	}
	if err := checkAliasAllowed(dst, src); err != nil {
		return err
	}
	eng, err := engineFor(name)
	if err != nil {
		return err
	}
	return eng.Unary(op, dst, src, resolveUnchecked(unchecked))
}

// Binary dispatches a binary elementwise op with commensurate
// broadcasting (spec.md §4.3).
func Binary(op cpu.BinaryOp, dst, a, b tensor.Tensor, unchecked *bool) error {
	name, err := sameDriver(dst, a, b)
	if err != nil {
		return err
	}
	if err := checkAliasAllowed(dst, a); err != nil {
		return err
	}
	if err := checkAliasAllowed(dst, b); err != nil {
		return err
	}
	eng, err := engineFor(name)
	if err != nil {
		return err
	}
	return eng.Binary(op, dst, a, b, resolveUnchecked(unchecked))
}

// Select dispatches the ternary where(cond, a, b) op.
func Select(dst, cond, a, b tensor.Tensor, unchecked *bool) error {
	name, err := sameDriver(dst, cond, a, b)
	if err != nil {
		return err
	}
	if err := checkAliasAllowed(dst, a); err != nil {
		return err
	}
	if err := checkAliasAllowed(dst, b); err != nil {
		return err
	}
	eng, err := engineFor(name)
	if err != nil {
		return err
	}
	return eng.Select(dst, cond, a, b, resolveUnchecked(unchecked))
}

// Reduce dispatches a last-axis reduction (spec.md §4.6): dst's shape
// must equal src's with its last axis dropped (or the conventional
// length-1 shape when src is rank-1).
func Reduce(op cpu.ReduceOp, dst, src tensor.Tensor, unchecked *bool) error {
	name, err := sameDriver(dst, src)
	if err != nil {
		return err
	}
	if err := checkAliasAllowed(dst, src); err != nil {
		return err
	}
	eng, err := engineFor(name)
	if err != nil {
		return err
	}
	return eng.Reduce(op, dst, src, resolveUnchecked(unchecked))
}

// Gemm dispatches C = alpha*opA(A)*opB(B) + beta*C (spec.md §4.6). C
// may alias itself (it is read as the accumulator and written as the
// result) but must not alias A or B.
func Gemm(transA, transB bool, alpha, beta float64, c, a, b tensor.Tensor) error {
	name, err := sameDriver(c, a, b)
	if err != nil {
		return err
	}
	if err := checkGemmOperandAlias(c, a); err != nil {
		return err
	}
	if err := checkGemmOperandAlias(c, b); err != nil {
		return err
	}
	eng, err := engineFor(name)
	if err != nil {
		return err
	}
	return eng.Gemm(transA, transB, alpha, beta, c, a, b)
}

// Rand dispatches the rand op, filling dst with independent samples.
func Rand(dist cpu.RandDistribution, dst tensor.Tensor, seed int64, p1, p2 float64) error {
	name := dst.Buf.Driver().Name()
	eng, err := engineFor(name)
	if err != nil {
		return err
	}
	return eng.Rand(dist, dst, seed, p1, p2)
}
