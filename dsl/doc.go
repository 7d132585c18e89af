// Package dsl provides a fluent builder for fastwire templates, so that
// statically known schemas read close to their wire layout:
//
//	tmpl := dsl.Template(144, "MDIncRefresh").
//		UInt32("MsgSeqNum", 34, dsl.Increment()).
//		ASCII("Symbol", 55, dsl.Copy()).
//		Sequence("MDEntries", 268, func(e *dsl.Builder) {
//			e.Decimal("Price", 270, dsl.Delta())
//			e.Int32("Size", 271, dsl.Delta(), dsl.Optional())
//		}).
//		MustBuild()
//
// Build validates against the same rules the Registry enforces; templates
// produced here still go through Registry.Register.
package dsl
