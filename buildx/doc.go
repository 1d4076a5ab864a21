// Package buildx materializes strongly-typed object graphs from
// hierarchical configuration trees.
//
// Overview:
//   - Responsibility: Pick the best constructor for a target type given the
//     configuration keys present, bind constructor arguments and remaining
//     fields from the tree, and recurse for nested complex members
//   - Key Types: Registry for types/constructors/default types/converters,
//     Builder for recursive construction, Resolver for externally supplied
//     dependencies, Candidate for constructor ranking
//   - Concurrency Model: Registry is safe for concurrent use after setup;
//     Builder is stateless and safe to call from any goroutine
//   - Error Semantics: Failures carry core/errors codes
//     (INVALID_CONFIGURATION, CONSTRUCTION_FAILURE, CONVERSION_FAILURE);
//     no partial objects are returned
//   - Performance Notes: Construction is synchronous reflection; ranking is
//     linear in constructors times parameters
//
// Usage:
//
//	reg := buildx.NewRegistry()
//	reg.RegisterType("widget", buildx.TypeOf[*Widget](),
//	    buildx.NewConstructor(NewWidget, "size", "label").WithDefault("label", "x"))
//
//	b := buildx.NewBuilder(reg)
//	w, err := buildx.Materialize[*Widget](b, node)
package buildx
