// Package command turns chat messages into fleet operations.
//
// A transport (Discord, MQTT) parses an inbound message with ParseMessage,
// attaches its reply function and hands the Invocation to Service.Handle.
// Two commands are recognised:
//
//	&color <name>   set every light to the named color at 50% brightness
//	&colors         list the known color names
//
// A successful color command sends no reply. Usage and lookup mistakes are
// answered with fixed texts (ReplyInvalidFormat, ReplyInvalidColor). Device
// failures are returned to the transport, which logs them.
//
// After every handled command the registered Listeners receive an Outcome.
// Listeners run after the device registry's exclusive scope has been
// released, so slow sinks never hold up the fleet.
package command
