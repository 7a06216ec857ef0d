// Package router decides which payment processor should receive a request.
//
// Choose is a pure function over one health snapshot, so every request gets a
// deterministic answer from a consistent view: the default processor is
// preferred, the fallback takes over when the default is failing or slower,
// and None signals that both are down. Ties go to the default processor
// because its fee is lower.
package router
