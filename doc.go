// Package pbjournal reads and edits Protocol Buffers wire-format messages in
// place, without decoding them into Go structs.
//
// Package pbjournal provides:
//
// - Journal: the versioned byte store a message tree lives in
// - Message, Field and Cursor: handles that read and write single fields inside the store
// - Decoder, Encoder and Validate: one-shot traversal, append-only building and required-field checks
//
// Every write keeps the length prefixes of all enclosing submessages
// consistent. Handles remember the journal version they were resolved at;
// after a write through another handle they realign on their next use, or
// fail with ErrInvalid when their record is gone.
//
// Design policy:
// - The editing engine (Journal, Part and the Message, Field and Cursor views) lives in the root package;
//   only the pure length-prefix planner sits under internal/repair.
// - Wire-level codecs live in varint/ and wire/, schema nodes in descriptor/, the CLI under cmd/pbjournal.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	set, err := descriptor.LoadYAML(schema)
//	msg, err := pbjournal.Open(buf, set.Message("Person"))
//	err = msg.Put(1, "Ada")
//	err = msg.NestedPut([]uint32{4, 1}, "+81-3-0000")
//	var name string
//	err = msg.Get(1, &name)
//	out := msg.Journal().Bytes()
package pbjournal
