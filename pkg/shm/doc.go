// Package shm implements System V style shared memory segments.
//
// A Manager owns a fixed table of segments. Segments are created or looked up
// by Key with Get, attached into a Consumer's address space with Attach,
// released with Detach and administered with Stat, Set and Remove. A removed
// segment stays usable by the consumers that still have it attached and is
// destroyed with its last attachment.
//
// Example usage:
//
//	m, err := shm.New(shm.DefaultLimits(), shm.WithLogger(logger))
//	// ...
//	id, err := m.Get(ctx, 0x1234, 4096, shm.Create|0o600, cred)
//	c := m.NewConsumer(cred.PID)
//	addr, err := m.Attach(ctx, c, id, 0, 0, cred)
//	b, _ := c.Bytes(addr)
//	// ...
//	err = m.Detach(ctx, c, addr)
//
// Operations are instrumented with OpenTelemetry metrics and tracing.
package shm
