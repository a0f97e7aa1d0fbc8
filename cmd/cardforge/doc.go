// Command cardforge is the CLI for a running cardforged daemon: card and
// trait lookups, generation requests, job history, cache management, and
// configuration utilities.
package main
