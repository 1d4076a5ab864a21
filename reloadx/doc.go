// Package reloadx maintains long-lived forwarding handles over
// configuration-built instances, swapping the backing instance whenever
// the configuration subtree really changes.
//
// Overview:
//   - Responsibility: Change detection via a content digest, rebuild
//     orchestration, state transfer between outgoing and incoming
//     instances, and lifecycle cleanup of the replaced instance
//   - Key Types: Proxy for the stable handle, Gate for change detection,
//     Forge as the explicit per-interface adapter registry
//   - Concurrency Model: Forwarded calls read an atomic pointer and never
//     block; a per-proxy mutex serializes rebuilds; the forge populates
//     each interface entry at most once under concurrent first use
//   - Error Semantics: A failed rebuild keeps the previous instance
//     published and is surfaced through OnError and the logger
//   - Performance Notes: No-op notifications cost one tree walk and one
//     64-bit digest comparison
//
// Usage:
//
//	forge := reloadx.NewForge()
//	reloadx.RegisterAdapter(forge, func(current func() Greeter) Greeter {
//	    return greeterAdapter{current}
//	})
//
//	p, err := reloadx.NewProxy[Greeter](node, builder, forge)
//	g := p.Handle() // stable across reloads
package reloadx
