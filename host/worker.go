// Package host runs VMs for a host application.
package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/regvm/vm"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("regvm.host")

// ErrStopped is returned for requests made after Stop.
var ErrStopped = errors.New("host: worker stopped")

// request represents a unit of work to be executed on the VM goroutine.
type request struct {
	fn   func(*vm.VM) any
	done chan result
}

// result holds the return value from a VM operation.
type result struct {
	value any
	err   error
}

// Worker serializes all access to one VM through a single goroutine.
// A VM admits one runner at a time; hosts calling from many goroutines
// go through the worker instead of racing for the run token.
type Worker struct {
	vm       *vm.VM
	requests chan request
	quit     chan struct{}
	stop     sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(v *vm.VM) *Worker {
	w := &Worker{
		vm:       v,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes VM requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the VM, recovering from panics. Structural
// errors in byte code surface as panics from the VM and become errors here.
func (w *Worker) execute(fn func(*vm.VM) any) result {
	var res result
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.err = fmt.Errorf("%s: %v", w.vm.Name(), r)
				log.Errorf("recovered: %v", res.err)
			}
		}()
		res.value = fn(w.vm)
	}()
	return res
}

// Do submits a function for execution on the VM goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func(*vm.VM) any) (any, error) {
	req := request{
		fn:   fn,
		done: make(chan result, 1),
	}
	select {
	case <-w.quit:
		return nil, ErrStopped
	default:
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.quit:
		return nil, ErrStopped
	}
}

// Initialize runs the VM's priming pass on the worker goroutine.
func (w *Worker) Initialize(args ...any) (vm.Result, error) {
	return w.run(func(v *vm.VM) (vm.Result, error) {
		r, err := v.Acquire()
		if err != nil {
			return vm.Failed, err
		}
		defer r.Release()
		return r.Initialize(args...), nil
	})
}

// Execute runs the named entry on the worker goroutine.
func (w *Worker) Execute(entry string, args ...any) (vm.Result, error) {
	return w.run(func(v *vm.VM) (vm.Result, error) {
		r, err := v.Acquire()
		if err != nil {
			return vm.Failed, err
		}
		defer r.Release()
		return r.Execute(entry, args...)
	})
}

func (w *Worker) run(fn func(*vm.VM) (vm.Result, error)) (vm.Result, error) {
	var err error
	value, doErr := w.Do(func(v *vm.VM) any {
		var res vm.Result
		res, err = fn(v)
		return res
	})
	if doErr != nil {
		return vm.Failed, doErr
	}
	return value.(vm.Result), err
}

// Stop shuts down the worker goroutine. Stopping twice is a no-op.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}

// VM returns the underlying VM (for metadata access that doesn't run
// it, like parameters and the disassembly).
func (w *Worker) VM() *vm.VM {
	return w.vm
}
