// Package credits computes dubbing costs and keeps per-user credit balances.
// Cost is a pure function of duration and media flags. The ledger uses a
// reserve/confirm/release model so a job's credits are held from the moment
// transcription starts but only debited once cloning actually begins.
package credits
