// Package sanitizer turns free-text record fields into comparison keys.
//
// All functions are pure, total and idempotent - applying them multiple times
// produces the same result. Invalid input never produces an error; it degrades
// to the empty string or to a best-effort textual key.
//
// Keys produced here are used in two places:
//   - the dedup key of a link: NormalizeHost(website) + NormalizeText(address)
//   - the fallback matcher: HostVariants(host) and PhoneSuffix(phone, MinPhoneDigits)
//
// Normalization includes:
//   - Text: Unicode lower-case, whitespace and punctuation removed - "12 Main St., Suite #4" becomes "12mainstsuite4"
//   - Hosts: hostname only, lower-case, no leading "www." - "https://www.Example.com/path" becomes "example.com"
//   - Phones: digits only, with non-ASCII digits folded to ASCII
package sanitizer
