// Package errors provides the voicebot error taxonomy.
//
// Every pipeline stage reports failures as *AppError values carrying a
// machine-readable code and a retryable flag. The orchestrator decides
// retry policy from the flag alone, so stages never need to know whether
// their caller retries.
package errors
