// Package vm implements the regvm register machine.
//
// This package contains:
//   - Typed arrays, records and registers grouped into memory containers
//     (Work, Literal, Debug and host-bridged External)
//   - The handle cache that resolves operands once per structural change
//   - The interpreter with its Initialize priming pass and Execute run
//   - The native function registry and the Call view functions receive
//   - The run token, deferred state copies and shared program instances
//   - The breakpoint and stepping debugger
//   - CBOR image Save and Load
package vm
