// Package memmap tracks the memory that JIT-compiled expressions allocate "inside" a debuggee.
//
// A Map hands out addresses under one of three policies:
//
//   - Policy_HostOnly: the bytes live only in a host shadow buffer, at an address fabricated
//     from a private, monotonically growing simulated range.
//   - Policy_ProcessOnly: the bytes live only in the debuggee, allocated by the live process.
//   - Policy_Mirror: the debuggee owns the memory and the host keeps a shadow copy that every
//     write updates. Without a capable process the allocation silently degrades to
//     Policy_HostOnly for the rest of its life.
//
// The debuggee (Process) and its static description (Target) are reached through handles that
// are resolved again on every call; either may disappear between two calls and that is not an
// error by itself.
//
// A Map is not safe for concurrent use. The expression evaluator drives it from one goroutine.
package memmap
