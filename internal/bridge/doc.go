// Package bridge describes a native module the way a script host sees it and
// drives the calls a host makes into it.
//
// A Module is a declarative table: entry-point functions, and types whose
// instances are host-visible handles owning a native value. Load validates
// the whole table once and returns an Instance; nothing is usable until that
// succeeds. Host adapters (see luabridge) translate their calling convention
// into Instance.Call, Instance.Allocate and the Handle lifecycle methods:
//
//	allocate -> allocated --init--> initialized --invoke--> initialized
//	     any state --destroy--> destroyed
//
// A failed Init leaves the handle as it was. A successful Init on an
// initialized handle replaces its value and releases the previous one.
package bridge
