// Package macro implements recordable editing templates.
//
// A template is an ordered list of Records, each naming one operation of a
// closed set together with its positional arguments. Templates live in a
// fixed-size Table of numbered slots; a slot is either unset or holds a
// (possibly empty) list of records.
//
// # Operations
//
// The recordable operations and their arguments:
//
//	change_speed       factor
//	cut_fragment       start, end
//	insert_image       path, start, end
//	concatenate_video  paths
//	rotate_video       direction ("left" or "right")
//	crop_video         x1, y1, x2, y2
//
// Lookup maps an operation name to its registry entry. Record.Action decodes
// a record into its typed Action; unknown names fail with ErrUnknownOperation.
//
// # Recording
//
// A Recorder is either Idle or Recording a single slot. Starting a recording
// resets the slot to an empty list and leaves the other slots untouched.
// Actions appended while Idle are dropped.
//
// # Persistence
//
// A Table is stored as a JSON array of exactly N entries:
//
//	[[["change_speed",2],["rotate_video","left"]],null,[],null,null]
//
// Arguments are kept as raw JSON so encoded tables round-trip byte for byte.
package macro
