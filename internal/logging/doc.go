// Package logging wraps zap for bookmarkd.
//
// Every method takes a context first and appends the correlation fields
// found in it: the OTEL trace and span ids, the cleaning pass id and
// category, the message sender id and the HTTP request id.
//
//	ctx = logging.WithPassID(ctx, passID)
//	ctx = logging.WithCategory(ctx, "bookmarks")
//	logger.Info(ctx, "bookmark deleted", zap.String("bookmark.id", id))
//
// Bookmark and history URLs are user data. With redaction enabled, URL
// credentials and the values of token-like query parameters are replaced
// before an entry reaches any output, as are fields whose key names a
// credential.
//
// Below Error, entries are sampled per message and tick. Errors always
// pass. TestLogger records entries in memory for assertions.
package logging
