// Package pointstore holds the values of named device state points.
//
// A point is a single value of a physical device, addressed by the ID the
// upstream system uses for it (e.g. "hue.0.kitchen.on" or
// "hm-rpc.0.OEQ123.4.LEVEL"). The gateway reads points to build state
// reports, writes them to carry out directives and watches them to drive
// proactive change reports.
//
// Two implementations are provided:
//   - MQTTStore mirrors retained state topics into memory and publishes writes
//     to set topics. This is what the running gateway uses.
//   - MemoryStore keeps everything in a map and is used in tests.
package pointstore
