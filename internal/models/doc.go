// Package models defines the core domain models for SafeRound.
//
// # Client Models
//
// The following models are held in memory by a single client session:
//   - DrinkEvent: one logged drink, the unit of the drink ledger
//   - UserBiometrics: weight and sex, required before any BAC estimate
//   - BACReading: a derived, ephemeral BAC value
//   - ReactionTrial: one completed reaction-time measurement
//   - GroupRoster: the cached, eventually-consistent copy of a group's members
//
// # Server Models
//
// The following models are persisted by the reference group service:
//   - User: profile data used to render member names and biometrics
//   - Group: a group with its 6-digit join code and member ids
//   - DrinkRecord: a validated drink used for cooldown checks
//
// # Design Principles
//
// 1. **Values, not pointers**: client models are copied out of components so callers never
// share mutable state with a ledger or syncer
// 2. **IDs as strings**: relationships use ID strings instead of pointers
// 3. **Wire names live elsewhere**: JSON tags belong to the remote and service packages
package models
