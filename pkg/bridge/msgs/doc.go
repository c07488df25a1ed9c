// Package msgs defines the messages exchanged with bridges.
//
// Every message travels wrapped in a Typed envelope:
//
//   Producer: bridges observing a session
//   Consumer: MQTT subscribers, trace clients, recordings
package msgs
