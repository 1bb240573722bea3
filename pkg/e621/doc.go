// Package e621 is a small client for the parts of the e621 API that
// e621dl needs: post search, single posts, pools and media downloads.
//
// Every API request carries the configured User-Agent, optional basic
// auth credentials, passes through a rate limiter and is retried on
// network errors, 429 and 5xx responses. Failures are returned as
// *errors.Error values typed by status code.
//
// Calling UpdateToSafe moves all later requests to e926.net.
package e621
