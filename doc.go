// Package schemaform provides the core of a schema-driven editor for
// extracted JSON documents:
//
// - A path algebra over JSON values with indexed (items[2]) and wildcard (items[]) segments (fieldpath/)
// - $ref/allOf resolution and schema descent by field path (schema/)
// - Flattening a schema into ordered field descriptors (fields/)
// - A draft/base reconciliation engine with a debounced flush (draft/)
// - Confidence tiers read from extraction metadata (confidence/)
// - The save and "human verified" protocol against external collaborators (review/)
//
// Design policy:
//   - Keep only the shared Issue/Report model in the root package.
//   - Collaborator implementations (store/, events/, schemawatch/) are optional and
//     live beside the core; the core depends only on the interfaces in review/.
//   - A slightly malformed schema never makes a document unreviewable: unresolvable
//     references and paths fail open.
//
// Typical usage:
//
//	sess := review.NewSession(review.Collaborators{Persister: st, Validator: st, Fetcher: st})
//	sess.Open(doc)
//	defer sess.Close()
//	_ = sess.UpdateField("invoice.po_no", "PO-1")
//	_ = sess.UpdateVerified(true)
//	outcome, err := sess.Save(ctx)
package schemaform
