// Package main hosts the encmirror CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into calls
// against the encmirrord HTTP API: queue listing with saved filter views,
// incremental change feeds, console output, operation messages, frame
// previews, and the pass-through commands the encode server accepts. It
// centralizes configuration resolution and API client construction so
// subcommands can focus on rendering.
package main
