// Package domain contains the core entities and value objects of the study
// system: grades, scheduling states, per-card memory state, deck settings,
// and card rendering. It is independent of storage, transport, and audio.
package domain
