// Package combatant defines one row of an initiative sheet.
//
// A Combatant is a value: helpers return modified copies and never mutate the
// receiver. Which optional blocks a row carries (death saves, concentration)
// is decided by its Kind; Normalize strips anything the Kind cannot hold so
// wire payloads cannot smuggle illegal states into the engine.
package combatant
