// Package cardgen orchestrates the card pipeline for a token: marketplace
// traits, vision analysis, card details, and async artwork generation. Every
// step is cache-then-generate; results are persisted before they are returned
// and failures are never cached.
package cardgen
