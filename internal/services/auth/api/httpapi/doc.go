// Package httpapi exposes the auth flows over HTTP under /api/auth.
//
// JSON endpoints answer with {"error": "authentication failed: <reason>",
// "code": "<CODE>"} on failure. Browser callbacks redirect on success and
// render the same text as plain text on failure.
package httpapi
