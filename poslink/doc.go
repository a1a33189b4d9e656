// Package poslink implements the message layer of the POS Link protocol used
// to drive EFTPOS pin-pad terminals.
//
// # Frame Format
//
// Every message travels as a single frame:
//
//	STX field1 , field2 , ... , fieldN ETX LRC
//
// Fields are ASCII text separated by a comma. LRC is the XOR of every byte
// after STX up to and including ETX. A comma inside a field is sent as FS
// (0x1C); any other control byte inside a field is prefixed with DLE (0x10).
// Bare ACK (0x06) and NAK (0x15) bytes outside a frame acknowledge the last
// frame received by the peer.
//
// # Messages
//
// Field 0 of every frame is the merchant reference, field 1 the three letter
// message tag and field 2 the merchant number. Requests describe their wire
// layout as an ordered table of [Field] values consumed by [Encode].
// Responses are produced by [NewResponse], which maps the tag to one of the
// concrete response types; frames with unknown tags become [*UnknownResponse].
//
// This package performs no I/O. The request lifecycle (polling, ACK/NAK
// handling, retries, operator prompts) lives in package pinpad.
package poslink
