// Package httpclient provides the HTTP plumbing example user types build
// their steps on.
//
// [NewClient] returns a client with a per-user cookie jar, connection reuse
// tuned for many instances, and optional W3C trace-context propagation so
// that a step's span is the parent of the server-side spans:
//
//	client := httpclient.NewClient(httpclient.Options{Timeout: 30 * time.Second, Propagate: true})
//
// [NewRequest] builds requests from a [BodySource], which can be re-read for
// redirects. [CheckStatus] turns non-2xx responses into a [*StatusError] so a
// step fails with a descriptive error.
package httpclient
